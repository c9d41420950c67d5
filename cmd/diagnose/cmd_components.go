package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-diagnostics/engine/catalog"
	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
	"github.com/WessleyAI/wessley-diagnostics/engine/matcher"
	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
)

func newComponentsCmd() *cobra.Command {
	var (
		code, vehicleMake, catalogPath, output string
	)
	cmd := &cobra.Command{
		Use:   "components [search text]",
		Short: "List catalog components, optionally filtered",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(output) {
				return fmt.Errorf("unknown output format %q", output)
			}
			cat, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			m := matcher.New(cat)
			found := cat.All()
			switch {
			case code != "":
				found = m.MatchByTroubleCodes([]string{strings.ToUpper(strings.TrimSpace(code))})
			case len(args) == 1:
				found = m.MatchBySymptoms(args)
				if len(found) == 0 {
					found = m.SearchFreeText(args[0])
				}
			}
			if vehicleMake != "" {
				canonical := domain.CanonicalMake(vehicleMake)
				found = fn.Filter(found, func(c catalog.Component) bool {
					for _, cm := range c.CompatibleMakes {
						if strings.EqualFold(cm, canonical) {
							return true
						}
					}
					return false
				})
			}
			return renderComponents(cmd.OutOrStdout(), output, found)
		},
	}
	f := cmd.Flags()
	f.StringVar(&code, "code", "", "OBD-II trouble code")
	f.StringVar(&vehicleMake, "make", "", "only components fitting this make")
	f.StringVar(&catalogPath, "catalog", "", "component catalog YAML")
	f.StringVarP(&output, "output", "o", "human", "output format: human, json or yaml")
	return cmd
}
