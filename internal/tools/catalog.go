// Package tools defines the research-assistant tool catalog and the executor
// that resolves model-issued tool calls against the paper store and the
// search client.
package tools

import "github.com/MrWong99/scholar/pkg/types"

// Tool names exposed to the model.
const (
	SearchPapers = "search_papers"
	ExtractInfo  = "extract_info"
)

// Catalog returns the fixed tool catalog advertised to every backend. The
// descriptions are the only behavioural documentation the model sees, so they
// spell out side effects: search persists its results, extract only reads.
func Catalog() []types.ToolSpec {
	return []types.ToolSpec{
		{
			Name: SearchPapers,
			Description: "Search arXiv for papers on a topic and store their metadata " +
				"(title, authors, summary, PDF link) for later retrieval. " +
				"Returns the list of paper IDs that were found and stored.",
			Params: []types.ToolParam{
				{
					Name:        "topic",
					Type:        "string",
					Description: "The topic to search for.",
					Required:    true,
				},
				{
					Name:        "max_results",
					Type:        "integer",
					Description: "Maximum number of results to retrieve.",
					Default:     5,
				},
			},
		},
		{
			Name: ExtractInfo,
			Description: "Look up the stored metadata for a single paper by its ID. " +
				"Reads previously stored search results only; it does not contact arXiv.",
			Params: []types.ToolParam{
				{
					Name:        "paper_id",
					Type:        "string",
					Description: "The ID of the paper to look up.",
					Required:    true,
				},
			},
		},
	}
}
