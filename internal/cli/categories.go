package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qcache/internal/registry"
)

// CategoryInfo describes one category superclass.
type CategoryInfo struct {
	Name     string   `json:"name"`
	Virtual  bool     `json:"virtual"`
	Identity []string `json:"identity"`
	System   []string `json:"system"`
}

// NewCategoriesCommand creates the categories command.
func NewCategoriesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the effective category superclasses",
		Long: `Print the categories resource classes are registered under: the
built-in set, or the CUE file named by categories_file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategories(rootOpts, cmd)
		},
	}
	return cmd
}

func runCategories(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	cats, err := cfg.Categories()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCategories, "failed to load categories", err)
	}

	infos := make([]CategoryInfo, len(cats))
	for i, c := range cats {
		infos[i] = categoryInfo(c)
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}
	for _, info := range infos {
		fmt.Fprintln(formatter.Writer, info.String())
	}
	return nil
}

func categoryInfo(c registry.Category) CategoryInfo {
	info := CategoryInfo{
		Name:     c.Name,
		Virtual:  c.Virtual,
		Identity: make([]string, len(c.Identity)),
		System:   []string{registry.StampDescriptor().String()},
	}
	for i, f := range c.Identity {
		info.Identity[i] = f.String()
	}
	if c.Virtual {
		info.System = append(info.System, registry.DiscriminatorDescriptor().String())
	}
	return info
}

// String renders the category as one line of text output.
func (c CategoryInfo) String() string {
	kind := "ordinary"
	if c.Virtual {
		kind = "virtual"
	}
	line := fmt.Sprintf("%-40s %-8s", c.Name, kind)
	if len(c.Identity) > 0 {
		line += " identity=" + strings.Join(c.Identity, ",")
	}
	return strings.TrimRight(line, " ")
}
