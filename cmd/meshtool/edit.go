package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/selector"
	"github.com/wbrown/janus-mesh/mesh/setops"
)

func newSkinCommand(opts *rootOptions) *cobra.Command {
	var (
		setID  int64
		name   string
		blocks []int64
	)
	cmd := &cobra.Command{
		Use:   "skin <store>",
		Short: "Record the boundary faces of some or all blocks as a side set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.open(args[0], mesh.AppendModify)
			if err != nil {
				return err
			}
			set, err := setops.Skin(h.Entities(), setID, name, opts.cfg.Shell, blocks...)
			if err != nil {
				h.Close()
				return err
			}
			if err := opts.commit(h); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "side set %d %q: %d sides\n", set.ID, set.Name, len(set.Sides))
			return nil
		},
	}
	cmd.Flags().Int64Var(&setID, "id", 0, "side set ID (default: next free)")
	cmd.Flags().StringVar(&name, "name", "skin", "side set name")
	cmd.Flags().Int64SliceVar(&blocks, "blocks", nil, "blocks to skin (default: all)")
	return cmd
}

func newSplitCommand(opts *rootOptions) *cobra.Command {
	var (
		elements []int64
		box      string
		a, b     setops.BlockSpec
	)
	cmd := &cobra.Command{
		Use:   "split <store> <block>",
		Short: "Split a block in two by element IDs or a bounding box",
		Long: `Split moves the chosen elements of a block into block A and the rest
into block B. Exactly one of --elements or --box chooses the elements.
Element IDs are kept, so side sets and element variables are unaffected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			blockID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if (len(elements) > 0) == (box != "") {
				return fmt.Errorf("exactly one of --elements or --box is required")
			}
			h, err := opts.open(args[0], mesh.AppendModify)
			if err != nil {
				return err
			}
			es := h.Entities()

			if box != "" {
				lo, hi, err := parseBox(box)
				if err != nil {
					h.Close()
					return err
				}
				sel, err := selector.Select(es, selector.InBox(es, lo, hi))
				if err == nil {
					err = setops.SplitBlockBySelector(es, blockID, sel, a, b)
				}
				if err != nil {
					h.Close()
					return err
				}
			} else if err := setops.SplitBlock(es, blockID, func(e mesh.Element) bool {
				return slices.Contains(elements, e.ID)
			}, a, b); err != nil {
				h.Close()
				return err
			}
			return opts.commit(h)
		},
	}
	cmd.Flags().Int64SliceVar(&elements, "elements", nil, "element IDs that go to block A")
	cmd.Flags().StringVar(&box, "box", "", "elements inside lo:hi go to block A, e.g. 0,0,0:1,1,1")
	cmd.Flags().Int64Var(&a.ID, "a-id", 0, "ID of block A (default: the split block)")
	cmd.Flags().StringVar(&a.Name, "a-name", "", "name of block A")
	cmd.Flags().Int64Var(&b.ID, "b-id", 0, "ID of block B (default: next free)")
	cmd.Flags().StringVar(&b.Name, "b-name", "", "name of block B")
	return cmd
}

func newMergeCommand(opts *rootOptions) *cobra.Command {
	var out setops.BlockSpec
	cmd := &cobra.Command{
		Use:   "merge <store> <block-a> <block-b>",
		Short: "Merge two blocks of the same topology",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idA, err := parseID(args[1])
			if err != nil {
				return err
			}
			idB, err := parseID(args[2])
			if err != nil {
				return err
			}
			h, err := opts.open(args[0], mesh.AppendModify)
			if err != nil {
				return err
			}
			if err := setops.MergeBlocks(h.Entities(), idA, idB, out); err != nil {
				h.Close()
				return err
			}
			return opts.commit(h)
		},
	}
	cmd.Flags().Int64Var(&out.ID, "id", 0, "ID of the merged block (default: block A's)")
	cmd.Flags().StringVar(&out.Name, "name", "", "name of the merged block")
	return cmd
}
