package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/inkwell-network/inkwell-node/internal/database"
	"github.com/inkwell-network/inkwell-node/internal/payment"
)

var (
	articleTitle     string
	articleBody      string
	articlePrice     string
	articleAuthor    string
	articlePayoutEVM string
	articlePayoutSOL string
)

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "Manage articles",
}

var articleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new article",
	Run: func(cmd *cobra.Command, args []string) {
		price, err := payment.ParsePrice(articlePrice, payment.ArticlePriceMin, payment.ArticlePriceMax)
		if err != nil {
			fmt.Printf("Invalid price: %v\n", err)
			os.Exit(1)
		}

		// Validate payout addresses up front so a bad one never reaches a reader
		if articlePayoutEVM != "" {
			if _, err := payment.NormalizeAddress(articlePayoutEVM, payment.ChainFamilyEVM); err != nil {
				fmt.Printf("Invalid EVM payout address: %v\n", err)
				os.Exit(1)
			}
		}
		if articlePayoutSOL != "" {
			if _, err := payment.NormalizeAddress(articlePayoutSOL, payment.ChainFamilySolana); err != nil {
				fmt.Printf("Invalid Solana payout address: %v\n", err)
				os.Exit(1)
			}
		}
		if articlePayoutEVM == "" && articlePayoutSOL == "" {
			fmt.Println("At least one payout address is required")
			os.Exit(1)
		}

		dbManager, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			fmt.Printf("Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer dbManager.Close()

		article := &database.Article{
			ArticleID:        uuid.New().String(),
			Title:            articleTitle,
			Body:             articleBody,
			PriceUSD:         price.StringFixed(2),
			AuthorName:       articleAuthor,
			PayoutAddressEVM: articlePayoutEVM,
			PayoutAddressSOL: articlePayoutSOL,
		}

		if err := dbManager.Articles.CreateArticle(article); err != nil {
			fmt.Printf("Failed to create article: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Article created: %s\n", article.ArticleID)
	},
}

var articleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles",
	Run: func(cmd *cobra.Command, args []string) {
		dbManager, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			fmt.Printf("Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer dbManager.Close()

		articles, err := dbManager.Articles.ListArticles(100, 0)
		if err != nil {
			fmt.Printf("Failed to list articles: %v\n", err)
			os.Exit(1)
		}

		if len(articles) == 0 {
			fmt.Println("No articles")
			return
		}

		for _, a := range articles {
			earnings := decimal.Zero
			if e, err := decimal.NewFromString(a.EarningsAtomic); err == nil {
				earnings = e.Shift(-6) // USDC, 6 decimals
			}
			fmt.Printf("%s  $%s  %q by %s  (%d purchases, $%s earned)\n",
				a.ArticleID, a.PriceUSD, a.Title, a.AuthorName, a.Purchases, earnings.StringFixed(2))
		}
	},
}

func init() {
	articleAddCmd.Flags().StringVar(&articleTitle, "title", "", "Article title")
	articleAddCmd.Flags().StringVar(&articleBody, "body", "", "Article body")
	articleAddCmd.Flags().StringVar(&articlePrice, "price", "0.10", "Price in USD (0.01-1.00)")
	articleAddCmd.Flags().StringVar(&articleAuthor, "author", "", "Author display name")
	articleAddCmd.Flags().StringVar(&articlePayoutEVM, "payout-evm", "", "Author payout address (Base)")
	articleAddCmd.Flags().StringVar(&articlePayoutSOL, "payout-sol", "", "Author payout address (Solana)")
	articleAddCmd.MarkFlagRequired("title")
	articleAddCmd.MarkFlagRequired("author")

	articleCmd.AddCommand(articleAddCmd)
	articleCmd.AddCommand(articleListCmd)
	rootCmd.AddCommand(articleCmd)
}
