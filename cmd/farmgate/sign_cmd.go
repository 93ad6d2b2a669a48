package main

import (
	"fmt"

	"github.com/layer-3/farmgate/internal/eth"
	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	var privateKey string

	cmd := &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a challenge message with an Ethereum key",
		Long:  "Sign a challenge message the way a wallet does with personal_sign. Without --key a throwaway key is generated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var signer *eth.Signer
			var err error
			if privateKey != "" {
				signer, err = eth.SignerFromHex(privateKey)
			} else {
				signer, err = eth.GenerateSigner()
			}
			if err != nil {
				return err
			}

			signature, err := signer.SignText(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address:   %s\n", signer.Address().Hex())
			fmt.Fprintf(out, "signature: %s\n", signature)
			if privateKey == "" {
				fmt.Fprintf(out, "key:       %s\n", signer.PrivateKeyHex())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&privateKey, "key", "k", "", "hex encoded secp256k1 private key")
	return cmd
}
