package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/marmos91/dittodav/pkg/dav"
)

type env struct {
	client *dav.Client
	stdout io.Writer
	stderr io.Writer
}

type command func(ctx context.Context, e *env, args []string) error

// usageError carries the synopsis of a command invoked with bad arguments.
type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

var commands = map[string]command{
	"ls":      cmdList,
	"stat":    cmdStat,
	"mkdir":   cmdMkdir,
	"put":     cmdPut,
	"cat":     cmdCat,
	"get":     cmdGet,
	"rm":      cmdRemove,
	"methods": cmdMethods,
}

func cmdList(ctx context.Context, e *env, args []string) error {
	const synopsis = "ls [--page n] [--page-size n] [--sort field] [--desc] [PATH]"

	fs := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	page := fs.Int("page", dav.AllPages, "Zero-based page (negative lists everything)")
	pageSize := fs.Int("page-size", dav.DefaultPageSize, "Entries per page")
	sortBy := fs.String("sort", string(dav.FieldDisplayName), "Field to sort by")
	desc := fs.Bool("desc", false, "Sort descending")
	if err := fs.Parse(args); err != nil || fs.NArg() > 1 {
		return usageError(synopsis)
	}

	field, err := dav.ParseField(*sortBy)
	if err != nil {
		return err
	}
	order := dav.Ascending
	if *desc {
		order = dav.Descending
	}

	entries, err := e.client.ListDirectory(ctx, fs.Arg(0), dav.ListOptions{
		SortBy:   field,
		Order:    order,
		Page:     *page,
		PageSize: *pageSize,
	})
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(e.stdout, "No entries")
		return nil
	}

	w := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED\tTYPE")
	for _, entry := range entries {
		name, size := entry.Name, humanize.Bytes(uint64(entry.Size))
		if entry.IsDir() {
			name, size = name+"/", "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, size, formatTime(entry.Modified), entry.ContentType)
	}
	return w.Flush()
}

func cmdStat(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("stat PATH")
	}

	entry, ok := e.client.Stat(ctx, args[0])
	if !ok {
		return fmt.Errorf("%s: not found", args[0])
	}

	w := tabwriter.NewWriter(e.stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", entry.Name)
	fmt.Fprintf(w, "Path:\t/%s\n", entry.Path)
	fmt.Fprintf(w, "Kind:\t%s\n", entry.Kind)
	fmt.Fprintf(w, "Type:\t%s\n", entry.ContentType)
	if !entry.IsDir() {
		fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", humanize.Bytes(uint64(entry.Size)), entry.Size)
	}
	if entry.ETag != "" {
		fmt.Fprintf(w, "ETag:\t%s\n", entry.ETag)
	}
	fmt.Fprintf(w, "Created:\t%s\n", entry.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "Modified:\t%s (%s)\n", entry.Modified.Format(time.RFC3339), humanize.Time(entry.Modified))
	return w.Flush()
}

func cmdMkdir(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("mkdir PATH")
	}
	if _, err := e.client.CreateDirectory(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Created: %s\n", args[0])
	return nil
}

func cmdPut(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return usageError("put LOCAL REMOTE")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	created, err := e.client.WriteFile(ctx, args[1], data)
	if err != nil {
		return err
	}

	verb := "Updated"
	if created {
		verb = "Created"
	}
	fmt.Fprintf(e.stdout, "%s: %s (%s)\n", verb, args[1], humanize.Bytes(uint64(len(data))))
	return nil
}

func cmdCat(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("cat PATH")
	}
	data, err := e.client.ReadBytes(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(data)
	return err
}

func cmdGet(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return usageError("get REMOTE LOCAL")
	}
	if err := e.client.DownloadFile(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Downloaded: %s -> %s\n", args[0], args[1])
	return nil
}

func cmdRemove(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("rm PATH")
	}
	ok, err := e.client.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: server refused the delete", args[0])
	}
	fmt.Fprintf(e.stdout, "Deleted: %s\n", args[0])
	return nil
}

func cmdMethods(ctx context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return usageError("methods")
	}
	methods, err := e.client.SupportedMethods(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, strings.Join(methods, " "))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
