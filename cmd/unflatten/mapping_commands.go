package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"unflatten/internal/mapping"
)

func newMappingCommand() *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:         "mapping",
		Short:       "Work with the flattening tool's mapping file",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
	}
	mappingCmd.AddCommand(newMappingLookupCommand())
	return mappingCmd
}

func newMappingLookupCommand() *cobra.Command {
	var mappingPath string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "lookup [name...]",
		Short: "Resolve identifier file names to their original paths",
		Long: `Resolve identifier file names to their original relative paths.

Names are read from the arguments, or one per line from stdin when none are
given. List bullets and trailing ": notes" are ignored, so lines copied from a
run summary can be pasted directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(mappingPath) == "" {
				return errors.New("--mapping is required")
			}
			m, err := mapping.Load(mappingPath)
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					names = append(names, scanner.Text())
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read names: %w", err)
				}
			}

			lookups := m.Lookup(names)
			if jsonOutput {
				return writeJSON(cmd, lookups)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			missing := 0
			for _, l := range lookups {
				if l.Found {
					fmt.Fprintf(out, "%s -> %s\n", l.Name, l.Original)
					continue
				}
				missing++
				fmt.Fprintln(out, paint(l.Name+": not in mapping", ansiRed, colorize))
			}
			fmt.Fprintf(out, "%d of %d names resolved\n", len(lookups)-missing, len(lookups))
			return nil
		},
	}
	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "Mapping JSON written by the flattening tool")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}
