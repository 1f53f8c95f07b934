package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// Mongo collection names: one per logical collection, plus the
// deduplicated body store.
const (
	collRuns     = "runs"
	collPages    = "pages"
	collEdges    = "edges"
	collParents  = "parent_maps"
	collChildren = "children_maps_entries"
	collPaths    = "path_maps_entries"
	collBodies   = "bodies"
)

// MongoStore is the durable Store backend, one Mongo database per
// deployment with the documents above partitioned by run_id. It is the
// backing store named in SPEC_FULL's domain stack for go.mongodb.org/mongo-driver.
type MongoStore struct {
	db   *mongo.Database
	sink *telemetry.Sink
}

// NewMongoStore wraps an already-connected client's database handle. The
// caller owns the client's lifecycle (Connect/Disconnect).
func NewMongoStore(client *mongo.Client, dbName string, sink *telemetry.Sink) *MongoStore {
	return &MongoStore{db: client.Database(dbName), sink: sink}
}

type runDoc struct {
	RunID            string     `bson:"run_id"`
	ApplicationID    string     `bson:"application_id"`
	State            string     `bson:"state"`
	SeedURL          string     `bson:"seed_url"`
	CreatedAt        time.Time  `bson:"created_at"`
	StartedAt        *time.Time `bson:"started_at,omitempty"`
	CompletedAt      *time.Time `bson:"completed_at,omitempty"`
	ErrorMessage     string     `bson:"error_message,omitempty"`
	PagesAnalyzed    int        `bson:"pages_analyzed"`
	LinksFound       int        `bson:"links_found"`
	BrokenCount      int        `bson:"broken_count"`
	BlankCount       int        `bson:"blank_count"`
	ContentPageCount int        `bson:"content_page_count"`
	Score            int        `bson:"score"`
}

type pageDoc struct {
	RunID           string   `bson:"run_id"`
	URL             string   `bson:"url"`
	Title           string   `bson:"title"`
	WordCount       int      `bson:"word_count"`
	PageType        string   `bson:"page_type"`
	HasHeader       bool     `bson:"has_header"`
	HasFooter       bool     `bson:"has_footer"`
	HasNavigation   bool     `bson:"has_navigation"`
	StructureDigest string   `bson:"structure_digest"`
	Depth           int      `bson:"depth"`
	Path            []string `bson:"path"`
}

type edgeDoc struct {
	RunID        string `bson:"run_id"`
	URL          string `bson:"url"`
	ParentURL    string `bson:"parent_url"`
	StatusCode   *int   `bson:"status_code"`
	Status       string `bson:"status"`
	LinkType     string `bson:"link_type"`
	ResponseTime int64  `bson:"response_time_ns"`
	ErrorMessage string `bson:"error_message,omitempty"`
	Title        string `bson:"title,omitempty"`
}

type parentMapDoc struct {
	RunID  string `bson:"run_id"`
	Child  string `bson:"child"`
	Parent string `bson:"parent"`
}

type childrenMapDoc struct {
	RunID    string   `bson:"run_id"`
	Parent   string   `bson:"parent"`
	Children []string `bson:"children"`
}

type pathMapDoc struct {
	RunID string   `bson:"run_id"`
	URL   string   `bson:"url"`
	Path  []string `bson:"path"`
}

type bodyDoc struct {
	RunID string `bson:"run_id"`
	URL   string `bson:"url"`
	Body  []byte `bson:"body"`
}

func (s *MongoStore) PersistRun(ctx context.Context, run model.Run, seedURL string, pages []model.PageRecord, edges []model.EdgeRecord, maps model.Maps, fetchedBodies map[string][]byte) failure.ClassifiedError {
	agg := ComputeAggregates(pages, edges)
	if err := validateBundle(seedURL, pages, edges, maps, agg, run); err != nil {
		storeErr := &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseInvariantViolation, RunID: run.RunID}
		s.sink.InvariantViolation(run.RunID, storeErr.Error())
		return storeErr
	}

	// Writes are idempotent under the run-id key. Clearing every collection's prior rows for this run id before
	// inserting keeps re-persisting the same run_id an overwrite rather
	// than an accumulation.
	if err := s.clearRun(ctx, run.RunID); err != nil {
		return s.writeFailure(run.RunID, err)
	}

	if err := s.insertRunDoc(ctx, run, seedURL); err != nil {
		return s.writeFailure(run.RunID, err)
	}
	if err := s.insertPages(ctx, run.RunID, pages); err != nil {
		return s.writeFailure(run.RunID, err)
	}
	if err := s.insertEdges(ctx, run.RunID, edges); err != nil {
		return s.writeFailure(run.RunID, err)
	}
	if err := s.insertMaps(ctx, run.RunID, maps); err != nil {
		return s.writeFailure(run.RunID, err)
	}
	bodies := bodyWriteSet(seedURL, maps, fetchedBodies)
	if err := s.insertBodies(ctx, run.RunID, bodies); err != nil {
		return s.writeFailure(run.RunID, err)
	}

	s.sink.StoreWrite(run.RunID, "persist_run", nil)
	return nil
}

func (s *MongoStore) writeFailure(runID string, err error) failure.ClassifiedError {
	storeErr := &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure, RunID: runID}
	s.sink.StoreWrite(runID, "persist_run", storeErr)
	return storeErr
}

func (s *MongoStore) clearRun(ctx context.Context, runID string) error {
	filter := bson.M{"run_id": runID}
	for _, coll := range []string{collRuns, collPages, collEdges, collParents, collChildren, collPaths, collBodies} {
		if _, err := s.db.Collection(coll).DeleteMany(ctx, filter); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoStore) insertRunDoc(ctx context.Context, run model.Run, seedURL string) error {
	doc := runDoc{
		RunID:            run.RunID,
		ApplicationID:    run.ApplicationID,
		State:            string(run.State),
		SeedURL:          seedURL,
		CreatedAt:        run.CreatedAt,
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
		ErrorMessage:     run.ErrorMessage,
		PagesAnalyzed:    run.PagesAnalyzed,
		LinksFound:       run.LinksFound,
		BrokenCount:      run.BrokenCount,
		BlankCount:       run.BlankCount,
		ContentPageCount: run.ContentPageCount,
		Score:            run.Score,
	}
	_, err := s.db.Collection(collRuns).InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) insertPages(ctx context.Context, runID string, pages []model.PageRecord) error {
	if len(pages) == 0 {
		return nil
	}
	docs := make([]interface{}, len(pages))
	for i, p := range pages {
		docs[i] = pageDoc{
			RunID: runID, URL: p.URL, Title: p.Title, WordCount: p.WordCount,
			PageType: string(p.PageType), HasHeader: p.HasHeader, HasFooter: p.HasFooter,
			HasNavigation: p.HasNavigation, StructureDigest: p.StructureDigest,
			Depth: p.Depth, Path: p.Path,
		}
	}
	_, err := s.db.Collection(collPages).InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) insertEdges(ctx context.Context, runID string, edges []model.EdgeRecord) error {
	if len(edges) == 0 {
		return nil
	}
	docs := make([]interface{}, len(edges))
	for i, e := range edges {
		docs[i] = edgeDoc{
			RunID: runID, URL: e.URL, ParentURL: e.ParentURL, StatusCode: e.StatusCode,
			Status: string(e.Status), LinkType: string(e.LinkType),
			ResponseTime: e.ResponseTime.Nanoseconds(), ErrorMessage: e.ErrorMessage, Title: e.Title,
		}
	}
	_, err := s.db.Collection(collEdges).InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) insertMaps(ctx context.Context, runID string, maps model.Maps) error {
	if len(maps.ParentMap) > 0 {
		docs := make([]interface{}, 0, len(maps.ParentMap))
		for child, parent := range maps.ParentMap {
			docs = append(docs, parentMapDoc{RunID: runID, Child: child, Parent: parent})
		}
		if _, err := s.db.Collection(collParents).InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	if len(maps.ChildrenMap) > 0 {
		docs := make([]interface{}, 0, len(maps.ChildrenMap))
		for parent, children := range maps.ChildrenMap {
			docs = append(docs, childrenMapDoc{RunID: runID, Parent: parent, Children: children})
		}
		if _, err := s.db.Collection(collChildren).InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	if len(maps.PathMap) > 0 {
		docs := make([]interface{}, 0, len(maps.PathMap))
		for u, path := range maps.PathMap {
			docs = append(docs, pathMapDoc{RunID: runID, URL: u, Path: path})
		}
		if _, err := s.db.Collection(collPaths).InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoStore) insertBodies(ctx context.Context, runID string, bodies map[string][]byte) error {
	if len(bodies) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(bodies))
	for u, body := range bodies {
		docs = append(docs, bodyDoc{RunID: runID, URL: u, Body: body})
	}
	_, err := s.db.Collection(collBodies).InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) GetRun(ctx context.Context, runID string) (model.RunBundle, failure.ClassifiedError) {
	var doc runDoc
	if err := s.db.Collection(collRuns).FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc); err != nil {
		return model.RunBundle{}, s.notFoundOrFailure(runID, err)
	}

	pages, err := s.loadPages(ctx, runID)
	if err != nil {
		return model.RunBundle{}, s.writeFailure(runID, err)
	}
	edges, err := s.loadEdges(ctx, runID)
	if err != nil {
		return model.RunBundle{}, s.writeFailure(runID, err)
	}
	maps, classifiedErr := s.GetParentChild(ctx, runID)
	if classifiedErr != nil {
		return model.RunBundle{}, classifiedErr
	}

	run := model.Run{
		RunID: doc.RunID, ApplicationID: doc.ApplicationID, State: model.RunState(doc.State),
		CreatedAt: doc.CreatedAt, StartedAt: doc.StartedAt, CompletedAt: doc.CompletedAt,
		ErrorMessage: doc.ErrorMessage, PagesAnalyzed: doc.PagesAnalyzed, LinksFound: doc.LinksFound,
		BrokenCount: doc.BrokenCount, BlankCount: doc.BlankCount, ContentPageCount: doc.ContentPageCount,
		Score: doc.Score,
	}
	return model.RunBundle{Run: run, Pages: pages, Edges: edges, Maps: maps}, nil
}

func (s *MongoStore) loadPages(ctx context.Context, runID string) ([]model.PageRecord, error) {
	cur, err := s.db.Collection(collPages).Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []pageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.PageRecord, len(docs))
	for i, d := range docs {
		out[i] = model.PageRecord{
			URL: d.URL, Title: d.Title, WordCount: d.WordCount, PageType: model.PageType(d.PageType),
			HasHeader: d.HasHeader, HasFooter: d.HasFooter, HasNavigation: d.HasNavigation,
			StructureDigest: d.StructureDigest, Depth: d.Depth, Path: d.Path,
		}
	}
	return out, nil
}

func (s *MongoStore) loadEdges(ctx context.Context, runID string) ([]model.EdgeRecord, error) {
	cur, err := s.db.Collection(collEdges).Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []edgeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.EdgeRecord, len(docs))
	for i, d := range docs {
		out[i] = model.EdgeRecord{
			URL: d.URL, ParentURL: d.ParentURL, StatusCode: d.StatusCode, Status: model.StatusLabel(d.Status),
			LinkType: model.LinkType(d.LinkType), ResponseTime: time.Duration(d.ResponseTime),
			ErrorMessage: d.ErrorMessage, Title: d.Title,
		}
	}
	return out, nil
}

func (s *MongoStore) GetParentChild(ctx context.Context, runID string) (model.Maps, failure.ClassifiedError) {
	maps := model.NewMaps()

	parentCur, err := s.db.Collection(collParents).Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return model.Maps{}, s.writeFailure(runID, err)
	}
	defer parentCur.Close(ctx)
	var parentDocs []parentMapDoc
	if err := parentCur.All(ctx, &parentDocs); err != nil {
		return model.Maps{}, s.writeFailure(runID, err)
	}
	for _, d := range parentDocs {
		maps.ParentMap[d.Child] = d.Parent
	}

	childCur, err := s.db.Collection(collChildren).Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return model.Maps{}, s.writeFailure(runID, err)
	}
	defer childCur.Close(ctx)
	var childDocs []childrenMapDoc
	if err := childCur.All(ctx, &childDocs); err != nil {
		return model.Maps{}, s.writeFailure(runID, err)
	}
	for _, d := range childDocs {
		maps.ChildrenMap[d.Parent] = d.Children
	}

	pathCur, err := s.db.Collection(collPaths).Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return model.Maps{}, s.writeFailure(runID, err)
	}
	defer pathCur.Close(ctx)
	var pathDocs []pathMapDoc
	if err := pathCur.All(ctx, &pathDocs); err != nil {
		return model.Maps{}, s.writeFailure(runID, err)
	}
	for _, d := range pathDocs {
		maps.PathMap[d.URL] = d.Path
	}

	return maps, nil
}

func (s *MongoStore) DeleteRun(ctx context.Context, runID string) failure.ClassifiedError {
	if err := s.clearRun(ctx, runID); err != nil {
		return s.writeFailure(runID, err)
	}
	s.sink.StoreWrite(runID, "delete_run", nil)
	return nil
}

func (s *MongoStore) GetSource(ctx context.Context, runID, pageURL string, maxCrawlDepth int) (model.SourceResult, failure.ClassifiedError) {
	edges, err := s.loadEdges(ctx, runID)
	if err != nil {
		return model.SourceResult{}, s.writeFailure(runID, err)
	}
	maps, classifiedErr := s.GetParentChild(ctx, runID)
	if classifiedErr != nil {
		return model.SourceResult{}, classifiedErr
	}

	ceiling := maxCrawlDepth + 1
	cur := pageURL
	path := []string{pageURL}
	depth := 0
	for {
		var doc bodyDoc
		err := s.db.Collection(collBodies).FindOne(ctx, bson.M{"run_id": runID, "url": cur}).Decode(&doc)
		if err == nil {
			result := model.SourceResult{
				Body: doc.Body, ActualSourcePage: cur, IsSourceFromParent: depth > 0,
				TraversalPath: path, HierarchyDepth: depth,
			}
			result.HighlightedLinks = highlightLinks(edges, cur, doc.Body)
			return result, nil
		}
		if err != mongo.ErrNoDocuments {
			return model.SourceResult{}, s.writeFailure(runID, err)
		}

		parent, hasParent := maps.ParentMap[cur]
		if !hasParent || parent == "" {
			break
		}
		cur = parent
		path = append(path, cur)
		depth++
		if depth > ceiling {
			break
		}
	}

	return model.SourceResult{}, &StoreError{Message: pageURL, Cause: ErrCauseSourceNotFound, RunID: runID}
}

func (s *MongoStore) notFoundOrFailure(runID string, err error) failure.ClassifiedError {
	if err == mongo.ErrNoDocuments {
		return &StoreError{Message: runID, Cause: ErrCauseRunNotFound, RunID: runID}
	}
	return s.writeFailure(runID, err)
}

// EnsureIndexes creates the lookup indexes every read path above relies on.
// Called once at startup by the wiring layer, not per-request.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	byRunAndKey := func(coll, key string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: key, Value: 1}}}
	}
	models := map[string][]mongo.IndexModel{
		collPages:    {byRunAndKey(collPages, "url")},
		collEdges:    {byRunAndKey(collEdges, "url")},
		collParents:  {byRunAndKey(collParents, "child")},
		collChildren: {byRunAndKey(collChildren, "parent")},
		collPaths:    {byRunAndKey(collPaths, "url")},
		collBodies:   {byRunAndKey(collBodies, "url")},
	}
	for coll, idx := range models {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx, options.CreateIndexes()); err != nil {
			return err
		}
	}
	return nil
}
