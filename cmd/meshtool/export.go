package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/columnar"
	"github.com/wbrown/janus-mesh/mesh/diff"
	"github.com/wbrown/janus-mesh/mesh/export"
	"github.com/wbrown/janus-mesh/mesh/selector"
)

// errDiffers makes diff exit non-zero when the meshes differ
var errDiffers = errors.New("meshes differ")

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		blocks   []int64
		box      string
		nodeSets []int64
		sideSets []int64
		eo       export.Options
		verify   bool
	)
	cmd := &cobra.Command{
		Use:   "export <source> <destination>",
		Short: "Write a renumbered subset of a mesh to a new store",
		Long: `Export selects elements by block and/or bounding box, adds the nodes
they use, and writes them to a new store with contiguous IDs. Without
--blocks or --box the whole mesh is exported.

Sets named with --nodesets/--sidesets must be fully covered by the
selection; without them every covered set is exported.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := opts.open(args[0], mesh.ReadOnly)
			if err != nil {
				return err
			}
			defer src.Close()
			es := src.Entities()

			var preds []selector.Predicate
			if len(blocks) > 0 {
				preds = append(preds, selector.InBlocks(blocks...))
			}
			if box != "" {
				lo, hi, err := parseBox(box)
				if err != nil {
					return err
				}
				preds = append(preds, selector.InBox(es, lo, hi))
			}
			if len(preds) == 0 {
				preds = append(preds, selector.All())
			}
			if len(nodeSets) > 0 {
				preds = append(preds, selector.NodeSetIDs(nodeSets...))
			}
			if len(sideSets) > 0 {
				preds = append(preds, selector.SideSetIDs(sideSets...))
			}
			sel, err := selector.Select(es, selector.Or(preds...))
			if err != nil {
				return err
			}
			if sel, err = selector.WithConnectedNodes(es, sel); err != nil {
				return err
			}

			storeOpts := opts.storageOptions()
			dst, err := columnar.Open(args[1], mesh.WriteNew, storeOpts.Columnar)
			if err != nil {
				return err
			}
			defer dst.Close()
			eo.Storage = storeOpts
			res, err := export.Subset(sel, es, dst, eo)
			if err != nil {
				return err
			}
			defer res.Handle.Close()

			r := res.Renumbering
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d nodes, %d elements in %d blocks, %d node sets, %d side sets, %d variables\n",
				len(r.Nodes), len(r.Elements), len(r.Blocks), len(r.NodeSets), len(r.SideSets), len(r.Variables))

			if !verify {
				return nil
			}
			report, err := diff.Diff(es, res.Handle.Entities(), diff.WithRenumbering(r))
			if err != nil {
				return err
			}
			if !report.Empty() {
				report.Render(cmd.OutOrStdout())
				return errDiffers
			}
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&blocks, "blocks", nil, "export the elements of these blocks")
	cmd.Flags().StringVar(&box, "box", "", "export elements inside lo:hi, e.g. 0,0,0:1,1,1")
	cmd.Flags().Int64SliceVar(&nodeSets, "nodesets", nil, "node sets that must be exported")
	cmd.Flags().Int64SliceVar(&sideSets, "sidesets", nil, "side sets that must be exported")
	cmd.Flags().IntSliceVar(&eo.TimeSteps, "steps", nil, "1-based time steps to keep (default: all)")
	cmd.Flags().StringSliceVar(&eo.Variables, "vars", nil, "variables to keep (default: all)")
	cmd.Flags().StringVar(&eo.Title, "title", "", "title of the new store")
	cmd.Flags().BoolVar(&verify, "verify", false, "diff the result against the source")
	return cmd
}

func newDiffCommand(opts *rootOptions) *cobra.Command {
	var tolerance float64
	cmd := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two mesh stores entity by entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(args[0], mesh.ReadOnly)
			if err != nil {
				return err
			}
			defer a.Close()
			b, err := opts.open(args[1], mesh.ReadOnly)
			if err != nil {
				return err
			}
			defer b.Close()

			if !cmd.Flags().Changed("tolerance") {
				tolerance = opts.cfg.Diff.Tolerance
			}
			report, err := diff.Diff(a.Entities(), b.Entities(), diff.WithTolerance(tolerance))
			if err != nil {
				return err
			}
			if err := report.Render(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !report.Empty() {
				return errDiffers
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "absolute and relative float tolerance")
	return cmd
}
