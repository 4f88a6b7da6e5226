package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/egaotan/solana-token2022/mint"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

func parseMint(value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("mint %q: %w", value, err)
	}
	return key, nil
}

func optionalKey(field, value string) (*solana.PublicKey, error) {
	if value == "" {
		return nil, nil
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", field, value, err)
	}
	return &key, nil
}

// parseFields reads key=value pairs.
func parseFields(values []string) ([]token2022.Field, error) {
	fields := make([]token2022.Field, 0, len(values))
	for _, value := range values {
		key, v, ok := strings.Cut(value, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("field %q: want key=value", value)
		}
		fields = append(fields, token2022.Field{Key: key, Value: v})
	}
	return fields, nil
}

func authorityCmd() *cobra.Command {
	var newAuthority string
	var revoke bool
	cmd := &cobra.Command{
		Use:   "authority <mint> <type>",
		Short: "Move or revoke a mint authority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mintKey, err := parseMint(args[0])
			if err != nil {
				return err
			}
			t, err := token2022.ParseAuthorityType(args[1])
			if err != nil {
				return err
			}
			next, err := optionalKey("new authority", newAuthority)
			if err != nil {
				return err
			}
			if (next == nil) == !revoke {
				return fmt.Errorf("exactly one of --to and --revoke is required")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(func(ctx context.Context) error {
				change, err := a.SetAuthority(ctx, mintKey, t, next)
				if err != nil {
					return err
				}
				return output(change)
			})
		},
	}
	cmd.Flags().StringVar(&newAuthority, "to", "", "new authority")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "drop the authority for good")
	return cmd
}

func mintToCmd() *cobra.Command {
	var owner string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "mint-to <mint>",
		Short: "Mint more supply, creating the owner's token account when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mintKey, err := parseMint(args[0])
			if err != nil {
				return err
			}
			holder, err := optionalKey("owner", owner)
			if err != nil {
				return err
			}
			if amount == 0 {
				return fmt.Errorf("amount must be positive")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(func(ctx context.Context) error {
				change, err := a.MintTo(ctx, mintKey, amount, holder)
				if err != nil {
					return err
				}
				return output(change)
			})
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "whole tokens to mint")
	cmd.Flags().StringVar(&owner, "owner", "", "token account owner, the signing wallet when empty")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func updateMetadataCmd() *cobra.Command {
	var update mint.MetadataUpdate
	var fields []string
	var updateAuthority string
	cmd := &cobra.Command{
		Use:   "update-metadata <mint>",
		Short: "Update the metadata stored in a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mintKey, err := parseMint(args[0])
			if err != nil {
				return err
			}
			if update.Fields, err = parseFields(fields); err != nil {
				return err
			}
			if update.UpdateAuthority, err = optionalKey("update authority", updateAuthority); err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(func(ctx context.Context) error {
				change, err := a.UpdateMetadata(ctx, mintKey, &update)
				if err != nil {
					return err
				}
				return output(change)
			})
		},
	}
	cmd.Flags().StringVar(&update.Name, "name", "", "new name")
	cmd.Flags().StringVar(&update.Symbol, "symbol", "", "new symbol")
	cmd.Flags().StringVar(&update.Uri, "uri", "", "new uri")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "additional key=value, repeatable")
	cmd.Flags().StringVar(&updateAuthority, "update-authority", "", "hand the metadata to this authority")
	cmd.Flags().BoolVar(&update.Immutable, "immutable", false, "drop the update authority")
	return cmd
}
