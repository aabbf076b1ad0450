package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"treenet/internal/adapter"
	"treenet/internal/adapter/rdns"
	"treenet/internal/codec"
	"treenet/internal/metrics"
	"treenet/internal/repository"
	"treenet/internal/repository/sqlite"
	"treenet/internal/service"
)

// newInference wires the inference service from the loaded config
func newInference(bus *service.EventBus, repo repository.Repository, m *metrics.Metrics) (*service.Inference, error) {
	opts := service.Options{
		Params:  cfg.Alias,
		Repo:    repo,
		Metrics: m,
	}

	if cfg.RDNS.Enabled {
		reg := adapter.NewRegistry()
		reg.SetEventHandler(func(eventType string, payload interface{}) {
			bus.Publish(service.Event{
				Type:    service.EventEnrichProgress,
				Payload: map[string]interface{}{"event": eventType, "detail": payload},
			})
		})
		enricher := rdns.New(cfg.RDNS.Server, cfg.RDNS.Timeout.Duration())
		if m != nil {
			enricher.WithLookupCounter(m.RDNSLookups)
		}
		if err := reg.Register(enricher, adapter.Config{Enabled: true, Priority: 10}); err != nil {
			return nil, err
		}
		opts.Enrichers = reg
	}

	return service.NewInference(bus, opts), nil
}

func openRepo(path string) (repository.Repository, error) {
	if path == "" {
		return nil, nil
	}
	repo, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	log.WithField("path", path).Info("database opened")
	return repo, nil
}

// create opens path for writing; "-" is stdout
func create(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeTo(path string, write func(io.Writer) error) error {
	w, err := create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func newBuildCmd() *cobra.Command {
	var datasetID int64

	cmd := &cobra.Command{
		Use:   "build [dataset]",
		Short: "Build the network tree, infer routers and write the reports",
		Long: `Build inserts the subnets of a dataset into a network tree, resolves the
routers of every neighborhood and projects the result into a bipartite graph.

The tree dump goes to --dump and the graph to --graph ("-" is stdout). With
neither set, the dump is printed. With --db the dataset and the result are
stored; --dataset-id rebuilds a stored dataset instead of reading a file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Input.Path = args[0]
			}
			if cfg.Output.Dump == "" && cfg.Output.Graph == "" {
				cfg.Output.Dump = "-"
			}

			// only persist when a database was asked for explicitly
			dbPath := ""
			if f := cmd.Flags().Lookup("db"); f.Changed || datasetID > 0 {
				dbPath = cfg.Database.Path
			}
			repo, err := openRepo(dbPath)
			if err != nil {
				return err
			}
			if repo != nil {
				defer repo.Close()
			}

			svc, err := newInference(nil, repo, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var res *service.Result
			switch {
			case datasetID > 0:
				res, err = svc.BuildStored(ctx, datasetID)
			case cfg.Input.Path != "":
				res, err = svc.BuildFile(ctx, cfg.Input.Path, cfg.Input.Format)
			default:
				return fmt.Errorf("no dataset: pass a file, --input or --dataset-id")
			}
			if err != nil {
				return err
			}

			if cfg.Output.Dump != "" {
				if err := writeTo(cfg.Output.Dump, res.Tree.Dump); err != nil {
					return err
				}
			}
			if cfg.Output.Graph != "" {
				err := writeTo(cfg.Output.Graph, func(w io.Writer) error {
					return codec.ExportGraph(res.Graph, cfg.Output.GraphFormat, w)
				})
				if err != nil {
					return err
				}
			}

			log.WithFields(log.Fields{
				"subnets":       res.TreeStats.Inserted,
				"duplicates":    res.TreeStats.Duplicates,
				"neighborhoods": res.AliasStats.Neighborhoods,
				"routers":       res.AliasStats.Routers,
				"run":           res.RunID,
			}).Info("build done")
			return nil
		},
	}

	addInputFlags(cmd.Flags())
	cmd.Flags().String("dump", "", `tree dump destination ("-" for stdout)`)
	cmd.Flags().String("graph", "", `graph destination ("-" for stdout)`)
	cmd.Flags().String("graph-format", "text", "graph format: text, json, yaml")
	cmd.Flags().String("db", "./treenet.db", "store the dataset and the result in this SQLite database")
	cmd.Flags().Int64Var(&datasetID, "dataset-id", 0, "rebuild a dataset stored in --db")
	return cmd
}

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <addr> [dataset]",
		Short: "Locate an address: its subnet, neighborhood and router",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := netip.ParseAddr(args[0])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			if len(args) == 2 {
				cfg.Input.Path = args[1]
			}
			if cfg.Input.Path == "" {
				return fmt.Errorf("no dataset: pass a file or --input")
			}

			svc, err := newInference(nil, nil, nil)
			if err != nil {
				return err
			}
			if _, err := svc.BuildFile(cmd.Context(), cfg.Input.Path, cfg.Input.Format); err != nil {
				return err
			}

			found, err := svc.Lookup(addr)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), found)
		},
	}
	addInputFlags(cmd.Flags())
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
