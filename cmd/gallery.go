package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage enrolled identities",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runGalleryList,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove <identity-id|name>",
	Short: "Remove an identity's template, by ID or display name",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRemove,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryRemoveCmd)
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	templates := e.gallery.Snapshot()
	if len(templates) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIM\tENROLLED")
	for _, t := range templates {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			t.ID, t.Name, len(t.Vector), t.EnrolledAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	id := args[0]
	if _, ok := e.gallery.Get(id); !ok {
		// Not an ID; try the display name.
		t, ok := e.gallery.FindByName(args[0])
		if !ok {
			return fmt.Errorf("identity %s is not enrolled", args[0])
		}
		id = t.ID
	}

	if err := e.templates.Delete(context.Background(), id); err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	e.gallery.Remove(id)

	fmt.Printf("Removed %s\n", id)
	return nil
}
