package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/storage"
	"github.com/wbrown/janus-mesh/mesh/tables"
)

var defaultInfoClasses = []mesh.EntityClass{
	mesh.ClassNodes, mesh.ClassElements, mesh.ClassBlocks,
	mesh.ClassNodeSets, mesh.ClassSideSets, mesh.ClassVariables,
}

// infoFilter limits what info prints
type infoFilter struct {
	classes []mesh.EntityClass
	kind    *mesh.VariableKind
}

func newInfoCommand(opts *rootOptions) *cobra.Command {
	var (
		classes []string
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "info <store>",
		Short: "Summarize a mesh store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := infoFilter{classes: defaultInfoClasses}
			if len(classes) > 0 {
				filter.classes = nil
				for _, name := range classes {
					class, err := mesh.ParseEntityClass(name)
					if err != nil {
						return err
					}
					filter.classes = append(filter.classes, class)
				}
			}
			if kind != "" {
				k, err := mesh.ParseVariableKind(kind)
				if err != nil {
					return err
				}
				filter.kind = &k
			}

			h, err := opts.open(args[0], mesh.ReadOnly)
			if err != nil {
				return err
			}
			defer h.Close()
			return printInfo(cmd, h.Entities(), filter)
		},
	}
	cmd.Flags().StringSliceVar(&classes, "class", nil, "classes to count (nodes, elements, blocks, nodesets, sidesets, variables)")
	cmd.Flags().StringVar(&kind, "kind", "", "list only variables of this kind (global, node, elem, nodeset, sideset)")
	return cmd
}

func printInfo(cmd *cobra.Command, es *storage.EntityStore, filter infoFilter) error {
	out := cmd.OutOrStdout()
	tf := tables.NewTableFormatter()

	info, err := es.Info()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "title:      %s\n", info.Title)
	fmt.Fprintf(out, "dimension:  %d\n", info.Dimension)
	fmt.Fprintf(out, "time steps: %d\n", info.NumTimeSteps())
	fmt.Fprintf(out, "revision:   %d\n\n", es.Revision())

	var counts [][]any
	for _, class := range filter.classes {
		n, err := es.Count(class)
		if err != nil {
			return err
		}
		counts = append(counts, []any{class, n})
	}
	fmt.Fprintln(out, tf.Format([]string{"class", "count"}, counts))

	blocks, err := es.Blocks()
	if err != nil {
		return err
	}
	var rows [][]any
	for _, b := range blocks {
		rows = append(rows, []any{b.ID, b.Name, b.Topology, len(b.Elements), b.AttributeNames})
	}
	fmt.Fprintln(out, tf.Format([]string{"block", "name", "topology", "elements", "attributes"}, rows))

	vars, err := storage.Collect[mesh.Variable](es, mesh.ClassVariables)
	if err != nil {
		return err
	}
	if len(vars) > 0 {
		rows = rows[:0]
		for _, v := range vars {
			if filter.kind != nil && v.Kind != *filter.kind {
				continue
			}
			rows = append(rows, []any{v.ID, v.Name, v.Kind.String(), v.Object, v.Width()})
		}
		fmt.Fprintln(out, tf.Format([]string{"variable", "name", "kind", "object", "width"}, rows))
	}
	return nil
}
