package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/notify-dispatch/internal/bootstrap"
	"github.com/target/notify-dispatch/internal/data"
	"github.com/target/notify-dispatch/internal/domain/model"
)

const defaultCommandTimeout = 2 * time.Minute

type inputOptions struct {
	File    string
	Timeout time.Duration
}

type enqueueOptions struct {
	inputOptions
	Now bool
}

func newFlagSet(name string, opts *inputOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&opts.File, "file", "-", "JSON input file, - for stdin")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "command timeout")
	return fs
}

func parseInputFlags(name string, args []string) (inputOptions, error) {
	var opts inputOptions
	if err := newFlagSet(name, &opts).Parse(args); err != nil {
		return opts, err
	}
	if opts.Timeout <= 0 {
		return opts, errors.New("timeout must be positive")
	}
	return opts, nil
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	var opts enqueueOptions
	fs := newFlagSet("enqueue", &opts.inputOptions)
	fs.BoolVar(&opts.Now, "now", false, "queue immediately instead of waiting for the promoter")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Timeout <= 0 {
		return opts, errors.New("timeout must be positive")
	}
	return opts, nil
}

// decodeInput reads one JSON document from path or stdin and rejects unknown fields.
func decodeInput(path string, stdin io.Reader, v any) error {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func withInfra(cmdCtx *commandContext, timeout time.Duration, fn func(ctx context.Context, infra *bootstrap.Infrastructure) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, timeout)
	defer cancel()

	infra, err := bootstrap.ConnectInfrastructure(ctx, &cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", cerr)
		}
	}()
	return fn(ctx, infra)
}

func runMigrate(cmdCtx *commandContext, args []string) error {
	opts, err := parseInputFlags("migrate", args)
	if err != nil {
		return err
	}
	return withInfra(cmdCtx, opts.Timeout, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
		return bootstrap.RunMigrations(ctx, infra.DB, cmdCtx.Logger)
	})
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}
	var req model.CreateJobRequest
	if err = decodeInput(opts.File, os.Stdin, &req); err != nil {
		return err
	}
	if err = req.Validate(); err != nil {
		return err
	}

	return withInfra(cmdCtx, opts.Timeout, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
		j, err := data.NewJobRepo(infra.DB, data.RepoConfig{}).Create(ctx, &req)
		if err != nil {
			return err
		}
		if !opts.Now {
			return writef(cmdCtx.Out, "job %s scheduled\n", j.ID)
		}
		leaseID, err := data.NewQueueRepo(infra.DB, data.RepoConfig{}).Enqueue(ctx, model.QueuePayload{
			JobID:     j.ID,
			TenantID:  j.TenantID,
			Channel:   j.Channel,
			EventType: j.EventType,
		})
		if err != nil {
			return fmt.Errorf("queue job %s: %w", j.ID, err)
		}
		return writef(cmdCtx.Out, "job %s queued as entry %d\n", j.ID, leaseID)
	})
}

func runUpsertTemplate(cmdCtx *commandContext, args []string) error {
	opts, err := parseInputFlags("upsert-template", args)
	if err != nil {
		return err
	}
	var tmpl model.Template
	if err = decodeInput(opts.File, os.Stdin, &tmpl); err != nil {
		return err
	}

	return withInfra(cmdCtx, opts.Timeout, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
		saved, err := data.NewTemplateRepo(infra.DB).Upsert(ctx, data.UpsertTemplateParams{Template: tmpl})
		if err != nil {
			return err
		}
		dropped := 0
		if infra.Redis != nil {
			dropped, err = data.NewRedisTemplateCache(infra.Redis).Invalidate(ctx, saved.EventType, saved.Channel)
			if err != nil {
				cmdCtx.Logger.WarnContext(ctx, "template cache invalidation failed", "error", err)
			}
		}
		return writef(cmdCtx.Out, "template %s saved (%s/%s), %d cache entries dropped\n",
			saved.ID, saved.EventType, saved.Channel, dropped)
	})
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseInputFlags("queue-stats", args)
	if err != nil {
		return err
	}
	return withInfra(cmdCtx, opts.Timeout, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
		stats, err := data.NewQueueRepo(infra.DB, data.RepoConfig{}).Stats(ctx)
		if err != nil {
			return err
		}
		return printQueueStats(cmdCtx.Out, stats)
	})
}

func printQueueStats(w io.Writer, stats *model.QueueStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "READY\tLEASED\tDEAD LETTERS\n%d\t%d\t%d\n",
		stats.Ready, stats.Leased, stats.DeadLetters); err != nil {
		return err
	}
	return tw.Flush()
}

func runOnce(cmdCtx *commandContext, args []string) error {
	opts, err := parseInputFlags("run-once", args)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config
	cfg.Services = "dispatcher"

	return withInfra(cmdCtx, opts.Timeout, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
		services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{Config: &cfg, Infra: infra, Logger: cmdCtx.Logger})
		if err != nil {
			return err
		}
		defer func() {
			if cerr := services.Close(); cerr != nil {
				cmdCtx.Logger.Warn("close services failed", "error", cerr)
			}
		}()

		promoted, err := services.Promoter.PromoteDue(ctx)
		if err != nil {
			return err
		}
		res, err := services.Consumer.RunCycleFrom(ctx, "admin")
		if err != nil {
			return err
		}
		return writef(cmdCtx.Out, "promoted=%d processed=%d errors=%d\n", promoted, res.Processed, res.Errors)
	})
}
