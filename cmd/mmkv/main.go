package main

import (
	"fmt"
	"os"

	"github.com/google/gops/agent"
	"github.com/spf13/cobra"
	"github.com/viant/mmkv"
	"go.uber.org/zap"
)

type options struct {
	configPath    string
	baseDir       string
	id            string
	encryptionKey string
	cipher        string
	fallback      string
	readOnly      bool
	multiProcess  bool
	verbose       bool
	gops          bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "mmkv",
		Short:         "Inspect and edit mmkv instances",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.gops {
				startGops()
			}
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "settings yaml (optional)")
	flags.StringVar(&opts.baseDir, "base-dir", "", "base directory (defaults to MMKV_BASE_DIR or the user config dir)")
	flags.StringVar(&opts.id, "id", mmkv.DefaultID, "instance id")
	flags.StringVar(&opts.encryptionKey, "encryption-key", "", "encryption key of the instance")
	flags.StringVar(&opts.cipher, "cipher", string(mmkv.AES128), "cipher: AES-128|AES-256")
	flags.StringVar(&opts.fallback, "fallback", "", "fallback engine: memory|local")
	flags.BoolVar(&opts.readOnly, "read-only", false, "open the instance read-only")
	flags.BoolVar(&opts.multiProcess, "multi-process", false, "open the instance in multi-process mode")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable development logging")
	flags.BoolVar(&opts.gops, "gops", false, "start the gops diagnostics agent")

	cmd.AddCommand(
		newGetCmd(opts),
		newSetCmd(opts),
		newRemoveCmd(opts),
		newKeysCmd(opts),
		newClearCmd(opts),
		newTrimCmd(opts),
		newSizeCmd(opts),
		newEncryptCmd(opts),
		newDecryptCmd(opts),
		newImportCmd(opts),
		newDeleteCmd(opts),
		newExistsCmd(opts),
	)
	return cmd
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		fmt.Fprintf(os.Stderr, "gops: %v\n", err)
	}
}

func (o *options) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// session is an opened registry plus the resources it holds.
type session struct {
	registry *mmkv.Registry
	settings *mmkv.Settings
	logger   *zap.Logger
	closers  []func() error
}

func (o *options) open() (*session, error) {
	ret := &session{logger: o.logger(), settings: &mmkv.Settings{}}
	if o.configPath != "" {
		settings, err := mmkv.LoadConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		ret.settings = settings
	}
	if o.baseDir != "" {
		ret.settings.BaseDir = o.baseDir
	}
	if o.fallback != "" {
		ret.settings.Fallback = mmkv.Fallback(o.fallback)
	}
	opts, closer, err := ret.settings.Options()
	if err != nil {
		return nil, err
	}
	ret.closers = append(ret.closers, closer)
	opts = append(opts, mmkv.WithLogger(ret.logger))
	ret.registry = mmkv.New(opts...)
	return ret, nil
}

// configuration returns the settings entry for id, overridden by flags.
func (o *options) configuration(settings *mmkv.Settings, id string) mmkv.Configuration {
	cfg := mmkv.Configuration{ID: id}
	for _, candidate := range settings.Instances {
		if candidate.ID == id {
			cfg = candidate.Configuration
		}
	}
	if o.encryptionKey != "" {
		cfg.EncryptionKey = o.encryptionKey
		cfg.EncryptionType = mmkv.EncryptionType(o.cipher)
	}
	if o.readOnly {
		cfg.ReadOnly = true
	}
	if o.multiProcess {
		cfg.Mode = mmkv.MultiProcess
	}
	return cfg
}

func (o *options) instance(s *session) (*mmkv.Instance, error) {
	return s.registry.Create(o.configuration(s.settings, o.id))
}

func (s *session) Close() {
	if err := s.registry.Close(); err != nil {
		s.logger.Warn("close registry", zap.Error(err))
	}
	for _, closer := range s.closers {
		_ = closer()
	}
	_ = s.logger.Sync()
}

// withInstance opens the selected instance and runs fn with it.
func (o *options) withInstance(fn func(inst *mmkv.Instance) error) error {
	s, err := o.open()
	if err != nil {
		return err
	}
	defer s.Close()
	inst, err := o.instance(s)
	if err != nil {
		return err
	}
	return fn(inst)
}
