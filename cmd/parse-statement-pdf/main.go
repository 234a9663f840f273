package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/colaso96/beforeyouradvisor/internal/adapters"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/statement"
)

func main() {
	log := logger.New()

	pdfPath := flag.String("file", "", "Path to a crypto card statement PDF (required)")
	showLines := flag.Bool("lines", false, "Print the reconstructed text lines")
	userID := flag.String("user", "local", "User ID used for dedup keys")
	flag.Parse()

	if *pdfPath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*pdfPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read PDF")
	}

	lines, err := statement.ExtractLines(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to extract text")
	}
	if *showLines {
		fmt.Println("=== Lines ===")
		for i, l := range lines {
			fmt.Printf("%4d  %s\n", i+1, l)
		}
		fmt.Println()
	}

	rows := statement.Parse(lines)
	fmt.Printf("=== Rows (%d) ===\n", len(rows))
	for _, r := range rows {
		fmt.Printf("%-12s  %10s  %s\n", r.Date, r.Amount, r.Description)
	}

	ctx := logger.WithContext(context.Background(), log)
	res := adapters.CryptoCard().Normalize(ctx, *userID, statement.RawRows(rows))
	fmt.Printf("\n=== Normalized (%d kept, %d credits, %d skipped) ===\n", len(res.Transactions), res.Credits, res.Skipped)
	for _, t := range res.Transactions {
		fmt.Printf("%s  %10s  %s  %s\n", t.Date, t.Amount, t.Type, t.Description)
	}
}
