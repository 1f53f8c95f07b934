package classifier

import "github.com/arvindnair/webanalyzer/internal/model"

// Result is the outcome of classifying one fetched page.
type Result struct {
	Title           string
	WordCount       int
	HasHeader       bool
	HasFooter       bool
	HasNavigation   bool
	PageType        model.PageType
	StructureDigest string
}
