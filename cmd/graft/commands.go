package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacentio/graft/access"
)

var (
	dataDir string

	rootCmd = &cobra.Command{
		Use:   "graft",
		Short: "Inspect and mutate a local graft hierarchy store",
		Long: `graft manages a composable hierarchy of items stored in a local
Badger database. Items link to each other through native lineage
(ascendant), a descendant head, and peer chains; heads may also mount
foreign branches to compose hierarchies.`,
		SilenceUsage: true,
	}

	// --- Structure ---
	newRootCmd = &cobra.Command{
		Use:   "root <content-ref>",
		Short: "Create a new root item",
		Args:  cobra.ExactArgs(1),
		RunE:  runNewRoot,
	}
	growCmd = &cobra.Command{
		Use:   "grow <stem-id> <content-ref>",
		Short: "Add a native descendant under a stem, becoming its new head",
		Args:  cobra.ExactArgs(2),
		RunE:  runGrow,
	}
	peerCmd = &cobra.Command{
		Use:   "peer <item-id> <content-ref>",
		Short: "Add a peer spliced in after an existing item",
		Args:  cobra.ExactArgs(2),
		RunE:  runPeer,
	}
	mountCmd = &cobra.Command{
		Use:   "mount <stem-id> <target-id>",
		Short: "Point a stem's descendant head at an existing branch head",
		Args:  cobra.ExactArgs(2),
		RunE:  runMount,
	}
	unmountCmd = &cobra.Command{
		Use:   "unmount <stem-id>",
		Short: "Clear a stem's descendant head",
		Args:  cobra.ExactArgs(1),
		RunE:  runUnmount,
	}
	visualCmd = &cobra.Command{
		Use:   "visual <item-id> <visual-ref>",
		Short: "Set an item's visual reference",
		Args:  cobra.ExactArgs(2),
		RunE:  runVisual,
	}
	rmCmd = &cobra.Command{
		Use:   "rm <item-id>",
		Short: "Delete an item, cascading to its native descendants",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}

	// --- Inspection ---
	showCmd = &cobra.Command{
		Use:   "show <item-id>",
		Short: "Print a single item's fields and incoming links",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	treeCmd = &cobra.Command{
		Use:   "tree <item-id>",
		Short: "Walk and print the branch below an item",
		Args:  cobra.ExactArgs(1),
		RunE:  runTree,
	}
	lineageCmd = &cobra.Command{
		Use:   "lineage <item-id>",
		Short: "Print an item's native ascendant chain up to the root",
		Args:  cobra.ExactArgs(1),
		RunE:  runLineage,
	}

	// --- Access ---
	grantCmd = &cobra.Command{
		Use:   "grant <content-ref> <user-id> <view|edit|admin>",
		Short: "Grant a user an explicit permission on a content ref",
		Args:  cobra.ExactArgs(3),
		RunE:  runGrant,
	}
	revokeCmd = &cobra.Command{
		Use:   "revoke <content-ref> <user-id>",
		Short: "Revoke a user's explicit permission on a content ref",
		Args:  cobra.ExactArgs(2),
		RunE:  runRevoke,
	}
	checkCmd = &cobra.Command{
		Use:   "check <content-ref> <user-id> <view|edit|admin>",
		Short: "Resolve whether a user holds a permission, honoring inheritance",
		Args:  cobra.ExactArgs(3),
		RunE:  runCheck,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "graft.db", "path to the Badger data directory")

	rootCmd.AddCommand(newRootCmd, growCmd, peerCmd, mountCmd, unmountCmd, visualCmd, rmCmd)
	rootCmd.AddCommand(showCmd, treeCmd, lineageCmd)
	rootCmd.AddCommand(grantCmd, revokeCmd, checkCmd)
}

func runNewRoot(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := s.CreateRoot(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runGrow(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := s.AddNativeDescendant(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runPeer(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := s.AddPeer(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runMount(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	return s.SetDescendantHead(cmd.Context(), args[0], args[1])
}

func runUnmount(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	return s.ClearDescendantHead(cmd.Context(), args[0])
}

func runVisual(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	return s.SetVisualRef(cmd.Context(), args[0], args[1])
}

func runRemove(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	return s.Delete(cmd.Context(), args[0])
}

func runShow(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	it, err := s.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("id:          %s\n", it.ID)
	fmt.Printf("content:     %s\n", it.ContentRef)
	fmt.Printf("ascendant:   %s\n", orDash(it.Ascendant))
	fmt.Printf("head:        %s\n", orDash(it.DescendantHead))
	fmt.Printf("peer-next:   %s\n", orDash(it.PeerNext))
	fmt.Printf("visual:      %s\n", orDash(it.VisualRef))
	fmt.Printf("version:     %d\n", it.Version)

	stems, err := s.FluxStems(ctx, it.ID)
	if err != nil {
		return err
	}
	for _, stem := range stems {
		fmt.Printf("mounted-by:  %s\n", stem.ID)
	}
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	walk, err := s.WalkBranch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, step := range walk.Steps {
		marker := ""
		if step.Cycle {
			marker = " (cycle)"
		}
		fmt.Printf("%s%s [%s]%s\n",
			strings.Repeat("  ", step.Depth), step.Item.ID, step.Item.ContentRef, marker)
	}
	if walk.Truncated {
		fmt.Println("... (truncated)")
	}
	return nil
}

func runLineage(cmd *cobra.Command, args []string) error {
	s, _, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	walk, err := s.WalkAscendants(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, it := range walk.Items {
		fmt.Printf("%s [%s]\n", it.ID, it.ContentRef)
	}
	if walk.Truncated {
		fmt.Println("... (truncated)")
	}
	return nil
}

func runGrant(cmd *cobra.Command, args []string) error {
	_, r, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	level, err := parseLevelArg(args[2])
	if err != nil {
		return err
	}
	return r.Grant(cmd.Context(), args[0], args[1], level)
}

func runRevoke(cmd *cobra.Command, args []string) error {
	_, r, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	return r.Revoke(cmd.Context(), args[0], args[1])
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, r, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	level, err := parseLevelArg(args[2])
	if err != nil {
		return err
	}

	allowed, err := r.HasAccess(cmd.Context(), args[0], args[1], level)
	if err != nil {
		return err
	}
	if allowed {
		fmt.Println("allowed")
		return nil
	}
	fmt.Println("denied")
	return nil
}

func parseLevelArg(s string) (access.Level, error) {
	level, err := access.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q: want view, edit, or admin", s)
	}
	return level, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
