package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/nl2sql-api/internal/grammar"
	"github.com/noah-isme/nl2sql-api/internal/utils"
)

// GrammarResponse describes the grammar attached to generation requests.
type GrammarResponse struct {
	Name       string   `json:"name"`
	Syntax     string   `json:"syntax"`
	Tables     []string `json:"tables"`
	Columns    []string `json:"columns"`
	Definition string   `json:"definition"`
}

// GrammarDocument serves the grammar as JSON, or as plain text with ?format=raw.
func GrammarDocument(g grammar.Grammar) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("format") == "raw" {
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.SendString(g.Definition())
		}

		return utils.SendSuccess(c, "grammar", GrammarResponse{
			Name:       g.Name(),
			Syntax:     string(g.Syntax()),
			Tables:     g.Tables(),
			Columns:    g.Columns(),
			Definition: g.Definition(),
		})
	}
}
