package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/bodul/campus-crossword/internal/crossword"
)

const analyzePrompt = `Analyse cette photo d'une grille de mots croisés résolue, avec ses définitions.

Extrais le puzzle au format JSON suivant :
{
  "author": "<auteur si imprimé, sinon chaîne vide>",
  "date": "<date de parution AAAA-MM-JJ si imprimée, sinon chaîne vide>",
  "clues": {
    "across": [
      {"num": "1", "row": 0, "col": 0, "answer": "MOT", "clue": "Définition"}
    ],
    "down": [
      {"num": "1", "row": 0, "col": 0, "answer": "MOT", "clue": "Définition"}
    ]
  }
}

Règles :
- "row" et "col" sont la case de départ du mot, comptées à partir de 0 en haut à gauche.
- "across" : mots horizontaux, lus de gauche à droite.
- "down" : mots verticaux, lus de haut en bas.
- "answer" contient uniquement les lettres du mot, en majuscules, sans espace.
- "num" est le numéro imprimé dans la case de départ.
- Réponds UNIQUEMENT avec le JSON, sans commentaire ni markdown.`

var errEmptyPuzzle = errors.New("no clues found")

// AnalyzeImage sends a photo of a solved grid to Gemini and returns the
// puzzle it reads from it.
func (g *GeminiClient) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*crossword.PuzzleInput, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: analyzePrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}
	return parsePuzzle([]byte(text))
}

// parsePuzzle decodes the model's JSON answer and drops entries that
// cannot be placed on a grid.
func parsePuzzle(data []byte) (*crossword.PuzzleInput, error) {
	var in crossword.PuzzleInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse puzzle JSON: %w\nraw response: %s", err, data)
	}

	in.Clues.Across = placeable(in.Clues.Across, crossword.Across)
	in.Clues.Down = placeable(in.Clues.Down, crossword.Down)
	if len(in.Clues.Across)+len(in.Clues.Down) == 0 {
		return nil, errEmptyPuzzle
	}
	return &in, nil
}

func placeable(specs []crossword.ClueSpec, d crossword.Direction) []crossword.ClueSpec {
	out := specs[:0]
	for _, s := range specs {
		if s.Answer == "" || !s.Fits(d) {
			continue
		}
		out = append(out, s)
	}
	return out
}
