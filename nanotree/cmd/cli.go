package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/types"
)

// CLI is the nanotree command line: cobra commands configured through
// viper from flags, NANOTREE_* variables and a nanotree.yaml file.
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	out       io.Writer
	errOut    io.Writer

	tree    *nanotree.Manager
	logFile io.Closer
}

// NewCLI creates the command tree writing results to out.
func NewCLI(out, errOut io.Writer) *CLI {
	cli := &CLI{
		viperInst: viper.New(),
		out:       out,
		errOut:    errOut,
	}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// ExecuteContext runs the command line in os.Args, or the args set with
// SetArgs.
func (cli *CLI) ExecuteContext(ctx context.Context) error {
	err := cli.rootCmd.ExecuteContext(ctx)
	if closeErr := cli.close(); err == nil {
		err = closeErr
	}
	return err
}

// SetArgs overrides os.Args, for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

// setupViperConfig configures environment variables and config discovery
func (cli *CLI) setupViperConfig() {
	cli.viperInst.SetConfigName("nanotree")
	cli.viperInst.SetConfigType("yaml")
	cli.viperInst.AddConfigPath(".")
	cli.viperInst.AddConfigPath("$HOME/.nanotree")

	// --step-length -> NANOTREE_STEP_LENGTH
	cli.viperInst.SetEnvPrefix("NANOTREE")
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cli.viperInst.AutomaticEnv()
}

// readConfig loads the config file named by --config or NANOTREE_CONFIG,
// falling back to discovery. Only an explicitly named file must exist.
func (cli *CLI) readConfig() error {
	if file := cli.viperInst.GetString("config"); file != "" {
		cli.viperInst.SetConfigFile(file)
		return cli.viperInst.ReadInConfig()
	}
	err := cli.viperInst.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "nanotree",
		Short: "Nanotree CLI - materialized path trees in SQLite or JSON files",
		Long: `Nanotree keeps a tree in a flat table. Every node stores its full path
from the root, so subtrees and siblings are plain prefix and range scans.

Nodes are addressed by path. Files ending in .json use the JSON store,
anything else is a SQLite database.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (NANOTREE_*)
3. Configuration file (--config, or nanotree.yaml in . or ~/.nanotree)

Examples:
  nanotree --db todo.db add-root "Groceries"
  nanotree --db todo.db add-child 0001 "Milk"
  nanotree --db todo.db add-sibling 00010001 "Bread" --pos left
  nanotree --db todo.db move 00010002 0001 --pos last-child
  nanotree --db todo.db ls
  nanotree --db todo.db find milk
  nanotree --db todo.db export todo.md`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = cli.viperInst.BindPFlags(cmd.Flags())
			if err := cli.readConfig(); err != nil {
				return NewConfigError("read config", err, "Check the file named by --config or NANOTREE_CONFIG")
			}
			return cli.openTree()
		},
	}
	cli.rootCmd.SetOut(cli.out)
	cli.rootCmd.SetErr(cli.errOut)
	cli.addGlobalFlags()
}

// addGlobalFlags adds persistent flags that apply to all commands
func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()

	flags.StringP("db", "d", "nanotree.db", "Tree file (.json for the JSON store, otherwise SQLite)")
	flags.StringP("config", "c", "", "Config file")
	flags.StringP("format", "f", "table", "Output format (table|json|yaml|outline|markdown)")
	flags.String("log-level", "warn", "Log level for the log file (debug|info|warn|error)")
	flags.Bool("log-ops", false, "Print every applied write to stdout")

	// Tree encoding, fixed when a tree is created
	flags.Int("step-length", types.DefaultStepLength, "Symbols per path step")
	flags.String("alphabet", types.DefaultAlphabet, "Ordered path symbols")
	flags.StringSlice("order-by", nil, "Payload fields that order siblings")
	flags.String("table", "nodes", "Table holding the tree")
	flags.String("schema", "", "YAML tree options (column names, alphabet, step_length, order_by)")

	bindFlags(cli.viperInst, flags, "db", "config", "format", "log-level", "log-ops", "step-length", "alphabet", "order-by", "table", "schema")
}

// bindFlags makes viper read the named flags under the same keys, so flags,
// NANOTREE_* variables and config file entries share one name.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

// options builds the tree configuration: the --schema file, or defaults,
// with any encoding flags, variables or config entries on top.
func (cli *CLI) options() (types.Options, error) {
	opts := types.DefaultOptions()
	if file := cli.viperInst.GetString("schema"); file != "" {
		f, err := os.Open(file)
		if err != nil {
			return opts, err
		}
		defer func() { _ = f.Close() }()
		if opts, err = types.LoadOptions(f); err != nil {
			return opts, err
		}
	}

	v := cli.viperInst
	if v.IsSet("table") {
		opts.Table = v.GetString("table")
	}
	if v.IsSet("step-length") {
		opts.StepLength = v.GetInt("step-length")
	}
	if v.IsSet("alphabet") {
		opts.Alphabet = v.GetString("alphabet")
	}
	if v.IsSet("order-by") {
		opts.OrderBy = v.GetStringSlice("order-by")
	}
	return opts.WithDefaults(), nil
}

func (cli *CLI) openTree() error {
	logger, logFile, err := initLogging(cli.viperInst.GetString("log-level"), cli.viperInst.GetBool("log-ops"), cli.out)
	if err != nil {
		return err
	}
	cli.logFile = logFile

	opts, err := cli.options()
	if err != nil {
		_ = cli.close()
		return NewConfigError("load schema", err, "Check the YAML file named by --schema")
	}

	db := cli.viperInst.GetString("db")
	tree, err := nanotree.Open(db, opts, nanotree.WithLogger(logger))
	if err != nil {
		_ = cli.close()
		if errors.Is(err, nanotree.ErrInvalidConfig) {
			return NewTreeError("open "+db, err)
		}
		return &CLIError{
			Operation:   "open " + db,
			Cause:       "cannot open tree file",
			Details:     err.Error(),
			Underlying:  err,
			Suggestions: []string{"Check that the directory exists and is writable"},
		}
	}
	cli.tree = tree
	logger.Debug("tree opened", "db", db)
	return nil
}

func (cli *CLI) close() error {
	var errs []error
	if cli.tree != nil {
		errs = append(errs, cli.tree.Close())
		cli.tree = nil
	}
	if cli.logFile != nil {
		errs = append(errs, cli.logFile.Close())
		cli.logFile = nil
	}
	return errors.Join(errs...)
}
