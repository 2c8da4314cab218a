package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/viant/mmkv"
	"github.com/viant/mmkv/engine"
	"github.com/viant/mmkv/matching"
)

func newGetCmd(opts *options) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				value, ok, err := lookup(inst, args[0], kind)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), format(value))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "read as: bool|string|number|buffer (default: stored type)")
	return cmd
}

func newSetCmd(opts *options) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parse(args[1], kind)
			if err != nil {
				return err
			}
			return opts.withInstance(func(inst *mmkv.Instance) error {
				return inst.Set(args[0], value)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "string", "value type: bool|string|number|buffer (hex)")
	return cmd
}

func newRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				removed, err := inst.Remove(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), removed)
				return nil
			})
		},
	}
}

func newKeysCmd(opts *options) *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				for _, key := range sel.filter().Keys(inst.Keys()) {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
	sel.bind(cmd, false)
	return cmd
}

func newClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				return inst.ClearAll()
			})
		},
	}
}

func newTrimCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "trim",
		Short: "Compact instance storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				before := inst.Size()
				if err := inst.Trim(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d -> %d bytes\n", before, inst.Size())
				return nil
			})
		},
	}
}

func newSizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the storage footprint in bytes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				fmt.Fprintln(cmd.OutOrStdout(), inst.Size())
				return nil
			})
		},
	}
}

func newEncryptCmd(opts *options) *cobra.Command {
	var cipher string
	cmd := &cobra.Command{
		Use:   "encrypt <new-key>",
		Short: "Encrypt (or re-key) the instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				return inst.Encrypt(args[0], mmkv.EncryptionType(cipher))
			})
		},
	}
	cmd.Flags().StringVar(&cipher, "new-cipher", string(mmkv.AES128), "cipher of the new key: AES-128|AES-256")
	return cmd
}

func newDecryptCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Remove encryption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withInstance(func(inst *mmkv.Instance) error {
				return inst.Decrypt()
			})
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	var sourceKey string
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "import <source-id>",
		Short: "Copy every key of another instance into the selected one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()
			target, err := opts.instance(s)
			if err != nil {
				return err
			}
			srcCfg := mmkv.Configuration{ID: args[0], EncryptionKey: sourceKey, ReadOnly: true}
			source, err := s.registry.Create(srcCfg)
			if err != nil {
				return err
			}
			filter := sel.filter()
			count, err := target.ImportFrom(source, func(key string, value engine.Value) bool {
				return filter.MatchValue(key, value.Len())
			})
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d keys\n", count)
			return err
		},
	}
	cmd.Flags().StringVar(&sourceKey, "source-key", "", "encryption key of the source instance")
	sel.bind(cmd, true)
	return cmd
}

// selection collects key filter flags.
type selection struct {
	include      []string
	exclude      []string
	maxValueSize int
}

func (s *selection) bind(cmd *cobra.Command, values bool) {
	cmd.Flags().StringSliceVar(&s.include, "include", nil, "key patterns to include (prefix or glob)")
	cmd.Flags().StringSliceVar(&s.exclude, "exclude", nil, "key patterns to exclude (prefix or glob)")
	if values {
		cmd.Flags().IntVar(&s.maxValueSize, "max-value-size", 0, "skip values larger than this many bytes")
	}
}

func (s *selection) filter() *matching.Filter {
	return matching.New(
		matching.WithInclusions(s.include...),
		matching.WithExclusions(s.exclude...),
		matching.WithMaxValueSize(s.maxValueSize),
	)
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an instance and its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()
			deleted, err := s.registry.Delete(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), deleted)
			return nil
		},
	}
}

func newExistsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <id>",
		Short: "Report whether an instance exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()
			ok, err := s.registry.Exists(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func lookup(inst *mmkv.Instance, key, kind string) (engine.Value, bool, error) {
	switch kind {
	case "":
		value, ok := inst.Get(key)
		return value, ok, nil
	case "bool":
		v, ok := inst.GetBool(key)
		return engine.Bool(v), ok, nil
	case "string":
		v, ok := inst.GetString(key)
		return engine.String(v), ok, nil
	case "number":
		v, ok := inst.GetNumber(key)
		return engine.Number(v), ok, nil
	case "buffer":
		v, ok := inst.GetBuffer(key)
		return engine.Buffer(v), ok, nil
	}
	return engine.Value{}, false, fmt.Errorf("unsupported type %q", kind)
}

func parse(text, kind string) (engine.Value, error) {
	switch kind {
	case "", "string":
		return engine.String(text), nil
	case "bool":
		v, err := strconv.ParseBool(text)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.Bool(v), nil
	case "number":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.Number(v), nil
	case "buffer":
		v, err := hex.DecodeString(text)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.Buffer(v), nil
	}
	return engine.Value{}, fmt.Errorf("unsupported type %q", kind)
}

func format(value engine.Value) string {
	if buf, ok := value.AsBuffer(); ok {
		return hex.EncodeToString(buf)
	}
	return value.Text()
}
