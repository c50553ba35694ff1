package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"prosimgo/pkg/prosim"
)

type commandFunc func(ctx context.Context, c *prosim.Client, opts *options, args []string, out io.Writer) error

var commands = map[string]commandFunc{
	"info":     cmdInfo,
	"datarefs": cmdDataRefs,
	"read":     cmdRead,
	"watch":    cmdWatch,
	"write":    cmdWrite,
}

func cmdInfo(_ context.Context, c *prosim.Client, _ *options, _ []string, out io.Writer) error {
	info, err := c.Info()
	if err != nil {
		return err
	}
	printInfo(out, info)
	fmt.Fprintf(out, "DataRefs: %d\n", len(c.DataRefs()))
	return nil
}

func printInfo(out io.Writer, info prosim.LicenseInfo) {
	fmt.Fprintf(out, "Mode:     %s\n", info.Mode)
	fmt.Fprintf(out, "Licensee: %s\n", info.Licensee)
	fmt.Fprintf(out, "Features: %s\n", strings.Join(info.Features, ", "))
}

func cmdDataRefs(_ context.Context, c *prosim.Client, _ *options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("datarefs", flag.ContinueOnError)
	fs.SetOutput(out)
	live := fs.Bool("live", false, "Query the simulator instead of the registry")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	refs := c.DataRefs()
	if *live {
		var err error
		if refs, err = c.AvailableDataRefs(); err != nil {
			return err
		}
	}
	for i := range refs {
		printDescriptor(out, &refs[i])
	}
	return nil
}

func printDescriptor(out io.Writer, d *prosim.Descriptor) {
	fmt.Fprintf(out, "[%s]\n", d.Name)
	fmt.Fprintf(out, "|-> Descr: %s\n", d.Description)
	fmt.Fprintf(out, "|-> Read: %t; Write: %t\n", d.CanRead, d.CanWrite)
	fmt.Fprintf(out, "|-> Type: %s\n", d.Type)
	fmt.Fprintf(out, "|-> Unit: %s\n", d.Unit)
	fmt.Fprintf(out, "|-> Active: %t\n", d.Active)
	fmt.Fprintf(out, "|-> Interval: %d\n\n", d.Interval.Milliseconds())
}

// cmdRead activates NAME and prints its value every pause.
func cmdRead(ctx context.Context, c *prosim.Client, opts *options, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: read NAME", errUsage)
	}
	name := args[0]
	if err := c.Activate(name, opts.interval, nil); err != nil {
		return err
	}

	ticker := time.NewTicker(opts.pause)
	defer ticker.Stop()
	for n := 0; opts.count == 0 || n < opts.count; {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		v, err := c.Value(name)
		if err != nil {
			return err
		}
		if v == nil {
			continue // nothing received yet
		}
		fmt.Fprintf(out, "%s = %v\n", name, v)
		n++
	}
	return nil
}

// cmdWatch prints every change callback of the named datarefs.
func cmdWatch(ctx context.Context, c *prosim.Client, opts *options, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: watch NAME...", errUsage)
	}

	changes := make(chan prosim.Change, 64)
	for _, name := range args {
		err := c.Activate(name, opts.interval, func(ch prosim.Change) {
			select {
			case changes <- ch:
			default:
			}
		})
		if err != nil {
			return err
		}
	}

	for n := 0; opts.count == 0 || n < opts.count; n++ {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-changes:
			fmt.Fprintf(out, "%s = %v\n", ch.Name, ch.Value)
		}
	}
	return nil
}

// cmdWrite activates NAME write-only and writes each value in turn.
func cmdWrite(ctx context.Context, c *prosim.Client, opts *options, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: write NAME VALUE...", errUsage)
	}
	name, values := args[0], args[1:]
	if err := c.Activate(name, 0, nil); err != nil {
		return err
	}

	for i, v := range values {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(opts.pause):
			}
		}
		if err := c.SetValue(name, v); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s <- %s\n", name, v)
	}
	return nil
}
