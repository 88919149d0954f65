package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"booktracker/internal/client"
	"booktracker/internal/model"
)

// readPassword reads a password with terminal echo disabled, falling back
// to plain reads when stdin is not a terminal (piped input in scripts).
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var line string
	if _, err := fmt.Scanln(&line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and save the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		c := apiClient()
		user, err := c.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if err := saveToken(c.Token()); err != nil {
			return err
		}

		fmt.Printf("Signed in as %s <%s>\n", user.Name, user.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clearToken(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <name> <email>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Choose a password: ")
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		c := apiClient()
		user, err := c.Register(cmd.Context(), args[0], args[1], password)
		if err != nil {
			return err
		}
		if err := saveToken(c.Token()); err != nil {
			return err
		}

		fmt.Printf("Welcome, %s! You are signed in.\n", user.Name)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show your collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		books, err := apiClient().Books(cmd.Context())
		if err != nil {
			return err
		}
		if len(books) == 0 {
			fmt.Println("Your collection is empty. Add a book with: bookctl add <title> <author>")
			return nil
		}

		// tabwriter aligns columns regardless of title length.
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tSTATUS\tRATING\tFOR SALE\tCOMMENTS")
		for _, b := range books {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				b.ID, b.Title, b.Author, b.Status,
				ratingStars(b.Rating), yesNo(b.IsForSale), len(b.Comments))
		}
		return w.Flush()
	},
}

var addStatus string

var addCmd = &cobra.Command{
	Use:   "add <title> <author>",
	Short: "Add a book to your collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := apiClient().AddBook(cmd.Context(), args[0], args[1], "", model.Status(addStatus))
		if err != nil {
			return err
		}
		fmt.Printf("Added %q by %s (id %s, shelf %s)\n", book.Title, book.Author, book.ID, book.Status)
		return nil
	},
}

var statusNext bool

var statusCmd = &cobra.Command{
	Use:   "status <book-id> [new-status]",
	Short: "Move a book to another shelf (to-read, in-progress, read, to-buy)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()

		var target model.Status
		switch {
		case statusNext:
			// Cycle to the next shelf: the current status comes from the
			// fetched collection, not a guess.
			books, err := c.Books(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := findBook(books, args[0])
			if !ok {
				return fmt.Errorf("no book with id %s in your collection", args[0])
			}
			target = client.NextStatus(current.Status)
		case len(args) == 2:
			target = model.Status(args[1])
		default:
			return fmt.Errorf("provide a new status or use --next")
		}

		if err := c.SetStatus(cmd.Context(), args[0], target); err != nil {
			return err
		}
		fmt.Printf("Moved to %s.\n", target)
		return nil
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate <book-id> <rating>",
	Short: "Rate a book 1-5, or 0 to clear the rating",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("rating must be a number: %w", err)
		}
		if err := apiClient().SetRating(cmd.Context(), args[0], rating); err != nil {
			return err
		}
		fmt.Printf("Rated %s.\n", ratingStars(rating))
		return nil
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell <book-id>",
	Short: "Toggle a book's for-sale flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		forSale, err := apiClient().ToggleForSale(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if forSale {
			fmt.Println("Listed for sale.")
		} else {
			fmt.Println("No longer for sale.")
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <book-id>",
	Short: "Delete a book and its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().DeleteBook(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Removed.")
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <book-id> <text>",
	Short: "Add a note to a book",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comments, err := apiClient().AddComment(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added. The book now has %d comment(s).\n", len(comments))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient().Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Total books:    %d\n", stats.Total)
		for _, s := range []model.Status{model.StatusToRead, model.StatusInProgress, model.StatusRead, model.StatusToBuy} {
			if n := stats.ByStatus[s]; n > 0 {
				fmt.Printf("  %-13s %d\n", s+":", n)
			}
		}
		fmt.Printf("For sale:       %d\n", stats.ForSale)
		if stats.AverageRating > 0 {
			fmt.Printf("Average rating: %.1f\n", stats.AverageRating)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search Google Books for a title or author",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := apiClient().Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tAUTHORS\tYEAR")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Title, strings.Join(r.Authors, ", "), r.PublishedYear)
		}
		return w.Flush()
	},
}

func init() {
	addCmd.Flags().StringVar(&addStatus, "status", "", "initial shelf (default to-read)")
	statusCmd.Flags().BoolVar(&statusNext, "next", false, "cycle to the next shelf")
}

func findBook(books []model.Book, id string) (*model.Book, bool) {
	for i := range books {
		if books[i].ID == id {
			return &books[i], true
		}
	}
	return nil, false
}

func ratingStars(rating int) string {
	if rating == 0 {
		return "-"
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
