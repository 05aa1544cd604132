package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fgrzl/hubkit/pkg/auth/jwtkit"
	"github.com/fgrzl/hubkit/pkg/transport/wskit"
	"github.com/spf13/cobra"
)

var tokenFlags struct {
	Subject  string
	Channels []string
	TTL      time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bridge token signed with the configured secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Bridge.Secret == "" {
			return errors.New("bridge secret not configured (bridge.secret or HUB_BRIDGE_SECRET)")
		}

		scopes := []string{wskit.ScopeAllChannels}
		if len(tokenFlags.Channels) > 0 {
			scopes = scopes[:0]
			for _, ch := range tokenFlags.Channels {
				scopes = append(scopes, wskit.ScopePrefix+ch)
			}
		}

		signer := &jwtkit.HMAC256Signer{Secret: []byte(cfg.Bridge.Secret)}
		token, err := signer.CreateToken(jwtkit.NewBridgeClaims(tokenFlags.Subject, scopes...), tokenFlags.TTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.Subject, "subject", "hubctl", "token subject")
	tokenCmd.Flags().StringSliceVar(&tokenFlags.Channels, "channel", nil, "grant one channel (repeatable, default all channels)")
	tokenCmd.Flags().DurationVar(&tokenFlags.TTL, "ttl", time.Hour, "token lifetime")
}
