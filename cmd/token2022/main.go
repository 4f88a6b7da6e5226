package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/egaotan/solana-token2022/app"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/harvest"
	"github.com/egaotan/solana-token2022/mint"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)

	rootCmd := &cobra.Command{
		Use:          "token2022",
		Short:        "Create Token-2022 mints and collect their withheld transfer fees",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "config file (.json, .yaml or .yml)")
	rootCmd.AddCommand(serveCmd(), createCmd(), harvestCmd(), withdrawMintCmd(), withheldCmd(),
		authorityCmd(), mintToCmd(), updateMetadataCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, token2022 engine is shutting down......\n", osCall)
	cancel()
}

func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg)
}

func output(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the http api until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			a.Service()
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "create <blueprint>",
		Short: "Create a mint from a blueprint file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := mint.LoadBlueprintFile(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(func(ctx context.Context) error {
				if dryRun {
					plan, logs, units, err := a.Simulate(ctx, file)
					if err != nil {
						return err
					}
					steps := make([]string, 0, len(plan.Steps))
					for _, kind := range plan.Kinds() {
						steps = append(steps, kind.String())
					}
					return output(map[string]interface{}{
						"size":  plan.Size,
						"rent":  plan.Rent,
						"steps": steps,
						"units": units,
						"logs":  logs,
					})
				}
				result, err := a.Create(ctx, file)
				if err != nil {
					return err
				}
				return output(map[string]interface{}{
					"mint":          result.Mint,
					"signature":     result.Signature,
					"slot":          result.Slot,
					"owner_account": result.Plan.OwnerAccount,
					"size":          result.Plan.Size,
					"rent":          result.Plan.Rent,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "simulate the creation without sending it")
	return cmd
}

// readSources takes keys from a comma separated list or, with a leading @,
// one key per line from a file.
func readSources(value string) ([]solana.PublicKey, error) {
	if strings.HasPrefix(value, "@") {
		data, err := os.ReadFile(value[1:])
		if err != nil {
			return nil, err
		}
		value = strings.ReplaceAll(string(data), "\n", ",")
	}
	sources := make([]solana.PublicKey, 0)
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(field)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", field, err)
		}
		sources = append(sources, key)
	}
	return sources, nil
}

type harvestFlags struct {
	mint        string
	owner       string
	batchSize   int
	mode        string
	parallelism int
}

func (f *harvestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mint, "mint", "", "mint address")
	cmd.Flags().StringVar(&f.owner, "owner", "", "owner of the destination token account, the player when empty")
	cmd.Flags().IntVar(&f.batchSize, "batch", 0, "sources per transaction, the config value when 0")
	cmd.Flags().StringVar(&f.mode, "mode", "", "sequential or parallel, the config value when empty")
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 0, "batches in flight in parallel mode, the config value when 0")
	cmd.MarkFlagRequired("mint")
}

func (f *harvestFlags) request(a *app.App, sources []solana.PublicKey) (*harvest.Request, error) {
	mintKey, err := solana.PublicKeyFromBase58(f.mint)
	if err != nil {
		return nil, fmt.Errorf("mint %q: %w", f.mint, err)
	}
	req := a.Request(mintKey, sources)
	if f.owner != "" {
		owner, err := solana.PublicKeyFromBase58(f.owner)
		if err != nil {
			return nil, fmt.Errorf("owner %q: %w", f.owner, err)
		}
		req.Owner = &owner
	}
	if f.batchSize > 0 {
		req.BatchSize = f.batchSize
	}
	if f.mode != "" {
		if req.Mode, err = harvest.ParseMode(f.mode); err != nil {
			return nil, err
		}
	}
	if f.parallelism > 0 {
		req.Parallelism = f.parallelism
	}
	return req, nil
}

func report(run *harvest.Run, err error) error {
	if run != nil {
		if outErr := output(run.Report()); outErr != nil {
			return outErr
		}
	}
	return err
}

func harvestCmd() *cobra.Command {
	var (
		flags   harvestFlags
		sources   string
		toMint    bool
		skipEmpty bool
	)
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Withdraw withheld fees from token accounts, or sweep them into the mint with --to-mint",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := readSources(sources)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			req, err := flags.request(a, keys)
			if err != nil {
				return err
			}
			req.SkipEmpty = skipEmpty
			return a.Run(func(ctx context.Context) error {
				if toMint {
					return report(a.Harvester().HarvestToMint(ctx, req))
				}
				return report(a.Harvester().WithdrawFromAccounts(ctx, req))
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&sources, "sources", "", "comma separated token accounts, or @file with one per line")
	cmd.Flags().BoolVar(&toMint, "to-mint", false, "harvest into the mint instead of withdrawing")
	cmd.Flags().BoolVar(&skipEmpty, "skip-empty", false, "read the sources first and drop those withholding nothing")
	cmd.MarkFlagRequired("sources")
	return cmd
}

func withdrawMintCmd() *cobra.Command {
	var flags harvestFlags
	cmd := &cobra.Command{
		Use:   "withdraw-mint",
		Short: "Withdraw the amount withheld in the mint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			req, err := flags.request(a, nil)
			if err != nil {
				return err
			}
			return a.Run(func(ctx context.Context) error {
				return report(a.Harvester().WithdrawFromMint(ctx, req))
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func withheldCmd() *cobra.Command {
	var mintFlag, sources string
	cmd := &cobra.Command{
		Use:   "withheld",
		Short: "Report the fees withheld in token accounts of a mint",
		RunE: func(cmd *cobra.Command, args []string) error {
			mintKey, err := solana.PublicKeyFromBase58(mintFlag)
			if err != nil {
				return fmt.Errorf("mint %q: %w", mintFlag, err)
			}
			keys, err := readSources(sources)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			holdings, err := a.Harvester().Withheld(cmd.Context(), mintKey, keys)
			if err != nil {
				return err
			}
			var total uint64
			for _, holding := range holdings {
				total += holding.Withheld
			}
			return output(map[string]interface{}{
				"mint":     mintKey,
				"total":    total,
				"holdings": holdings,
			})
		},
	}
	cmd.Flags().StringVar(&mintFlag, "mint", "", "mint address")
	cmd.Flags().StringVar(&sources, "sources", "", "comma separated token accounts, or @file with one per line")
	cmd.MarkFlagRequired("mint")
	cmd.MarkFlagRequired("sources")
	return cmd
}
