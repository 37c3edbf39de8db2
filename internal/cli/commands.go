// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-esapi.
//
// go-esapi is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-esapi/pkg/esapi"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
)

var propertiesCmd = &cobra.Command{
	Use:   "properties [tag...]",
	Short: "Read fixed TPM properties",
	Long: `Read TPM_PT properties through the context property cache. Tags are
property names (manufacturer, input-buffer, ...) or numeric TPM_PT values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = defaultProperties
		}
		props := make([]PropertyValue, 0, len(args))
		for _, arg := range args {
			name, tag, err := parseProperty(arg)
			if err != nil {
				return err
			}
			props = append(props, PropertyValue{Name: name, Tag: tag})
		}

		return withContext(cmd.Context(), func(ctx *esapi.Context) error {
			for i := range props {
				value, ok, err := ctx.GetTPMProperty(props[i].Tag)
				if err != nil {
					return err
				}
				props[i].Value, props[i].Found = value, ok
			}
			return NewPrinter(getConfig().OutputFormat, os.Stdout).PrintProperties(props)
		})
	},
}

var randomBytes int

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Read random bytes from the TPM",
	RunE: func(cmd *cobra.Command, args []string) error {
		if randomBytes <= 0 || randomBytes > math.MaxUint16 {
			return fmt.Errorf("--bytes must be between 1 and %d", math.MaxUint16)
		}
		return withContext(cmd.Context(), func(ctx *esapi.Context) error {
			session, err := ctx.StartAuthSession(esapi.SessionHMAC, esapi.SessionOptions{
				Encryption: esapi.EncryptOut,
			})
			if err != nil {
				return err
			}
			return ctx.ExecuteWithSession(session, func(ctx *esapi.Context) error {
				rnd, err := ctx.GetRandom(uint16(randomBytes))
				if err != nil {
					return err
				}
				defer sensitive.Zeroize(rnd)
				return NewPrinter(getConfig().OutputFormat, os.Stdout).PrintRandom(rnd.Buffer)
			})
		})
	},
}

var handlesCmd = &cobra.Command{
	Use:   "handles [transient|persistent|loaded-session|saved-session|nv]",
	Short: "List handles held by the TPM",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "transient"
		if len(args) == 1 {
			kind = args[0]
		}
		first, err := parseHandleRange(kind)
		if err != nil {
			return err
		}
		return withContext(cmd.Context(), func(ctx *esapi.Context) error {
			list, err := ctx.GetHandles(first, maxHandles)
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, os.Stdout).PrintHandles(kind, list)
		})
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush <handle>",
	Short: "Flush a transient object or session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return withContext(cmd.Context(), func(ctx *esapi.Context) error {
			if err := ctx.FlushContext(h); err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, os.Stdout).
				PrintSuccess(fmt.Sprintf("Flushed 0x%08x", uint32(h)))
		})
	},
}

var (
	contextName      string
	contextOverwrite bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Save and load TPM contexts through the blob store",
	Long: `Save and load TPM contexts. Blobs are kept in the directory named by
storage.blob_dir in the config file or ESAPI_BLOB_DIR.`,
}

var contextSaveCmd = &cobra.Command{
	Use:   "save <handle>",
	Short: "Save the context of a handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return withContext(cmd.Context(), func(ctx *esapi.Context) error {
			if err := ctx.SaveContextBlob(h, contextName, contextOverwrite); err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, os.Stdout).
				PrintSuccess(fmt.Sprintf("Saved context of 0x%08x as %s", uint32(h), contextName))
		})
	},
}

var contextLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a saved context",
	Long: `Load a saved context. The loaded handle belongs to this invocation and
is flushed when the command exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd.Context(), func(ctx *esapi.Context) error {
			h, err := ctx.LoadContextBlob(contextName)
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, os.Stdout).PrintHandle("loaded", h)
		})
	},
}

func init() {
	randomCmd.Flags().IntVarP(&randomBytes, "bytes", "n", 32, "number of random bytes")

	for _, c := range []*cobra.Command{contextSaveCmd, contextLoadCmd} {
		c.Flags().StringVar(&contextName, "name", "", "blob name")
		_ = c.MarkFlagRequired("name")
	}
	contextSaveCmd.Flags().BoolVar(&contextOverwrite, "overwrite", false, "replace an existing blob")
	contextCmd.AddCommand(contextSaveCmd, contextLoadCmd)
}
