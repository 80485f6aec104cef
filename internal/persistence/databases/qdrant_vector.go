package databases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Qdrant only allows UUIDs and positive integers as point IDs. So every
// point's ID is a deterministic UUIDv5 of the caller's own "regulation_id +
// version + chunk index" identity, with the original string kept in the payload under
// PAYLOAD_ID_FIELD so search results can report it back.
const PAYLOAD_ID_FIELD = "_original_id"

// Payload field names, kept flat (not nested under "metadata") so Qdrant's
// field indexes and range filters can address them directly.
const (
	fieldRegulationID  = "regulation_id"
	fieldStatus        = "status"
	fieldVersion       = "version"
	fieldEffectiveDate = "effective_date"
	fieldExpiryDate    = "expiry_date"
	fieldSupersededBy  = "superseded_by"
	fieldSupersedes    = "supersedes"
)

const (
	statusActive      = "active"
	statusSuperseded  = "superseded"
)

type qdrantVector struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot|manhattan
	hnswM      int
	hnswEfConstruct int
	hnswEfSearch    int
	searchTimeout   time.Duration
}

// HNSWConfig carries the index-construction knobs named in spec.md §6; zero
// values fall back to Qdrant's own defaults.
type HNSWConfig struct {
	M            int
	EfConstruct  int
	EfSearch     int
}

// NewQdrantVector opens (and lazily provisions) the regulation collection.
// The Go client talks Qdrant's gRPC API, which runs on port 6334 by default;
// an API key may be supplied as a DSN query parameter:
// "http://localhost:6334?api_key=your_api_key". A bare "host:port" DSN is
// read as "http://host:port".
func NewQdrantVector(dsn string, collection string, dimensions int, metric string, hnsw HNSWConfig, searchTimeoutSecs int) (VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "http://" + dsn
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse Qdrant DSN: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in Qdrant DSN: %w", err)
	}
	cfg := &qdrant.Config{
		Host: host,
		Port: portNum,
	}
	if parsedURL.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create Qdrant client: %w", err)
	}
	if searchTimeoutSecs <= 0 {
		searchTimeoutSecs = 10
	}
	qv := &qdrantVector{
		client:          client,
		collection:      collection,
		dimension:       dimensions,
		metric:          strings.ToLower(strings.TrimSpace(metric)),
		hnswM:           hnsw.M,
		hnswEfConstruct: hnsw.EfConstruct,
		hnswEfSearch:    hnsw.EfSearch,
		searchTimeout:   time.Duration(searchTimeoutSecs) * time.Second,
	}
	ctx := context.Background()
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	if err := qv.ensurePayloadIndexes(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure payload indexes: %w", err)
	}
	return qv, nil
}

func (q *qdrantVector) distance() qdrant.Distance {
	switch q.metric {
	case "l2", "euclidean":
		return qdrant.Distance_Euclid
	case "ip", "dot":
		return qdrant.Distance_Dot
	case "manhattan":
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

func (q *qdrantVector) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	var hnsw *qdrant.HnswConfigDiff
	if q.hnswM > 0 || q.hnswEfConstruct > 0 {
		hnsw = &qdrant.HnswConfigDiff{}
		if q.hnswM > 0 {
			m := uint64(q.hnswM)
			hnsw.M = &m
		}
		if q.hnswEfConstruct > 0 {
			ef := uint64(q.hnswEfConstruct)
			hnsw.EfConstruct = &ef
		}
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:       uint64(q.dimension),
			Distance:   q.distance(),
			HnswConfig: hnsw,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// ensurePayloadIndexes creates the field indexes spec.md §4.5 names:
// effective_date/expiry_date (datetime range), status/regulation_id
// (keyword exact-match), and the flattened metadata.category key. Qdrant
// returns an error for a duplicate index, which is tolerated here since
// collection provisioning is meant to be idempotent across restarts.
func (q *qdrantVector) ensurePayloadIndexes(ctx context.Context) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldEffectiveDate, qdrant.FieldType_FieldTypeDatetime},
		{fieldExpiryDate, qdrant.FieldType_FieldTypeDatetime},
		{fieldStatus, qdrant.FieldType_FieldTypeKeyword},
		{fieldRegulationID, qdrant.FieldType_FieldTypeKeyword},
		{"category", qdrant.FieldType_FieldTypeKeyword},
	}
	for _, idx := range indexes {
		fieldType := idx.kind
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      idx.field,
			FieldType:      &fieldType,
		})
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return fmt.Errorf("create index on %s: %w", idx.field, err)
		}
	}
	return nil
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func timePtr(t *timestamppb.Timestamp) *time.Time {
	if t == nil {
		return nil
	}
	tt := t.AsTime()
	return &tt
}

// Upsert idempotently writes points in sub-batches of 100 so one call never
// ships an unbounded gRPC message; a mid-batch failure is returned as-is and
// no attempt is made to roll back already-applied sub-batches, since Qdrant
// upserts are themselves idempotent (re-running the whole call is safe).
func (q *qdrantVector) Upsert(ctx context.Context, points []Point) error {
	const batchSize = 100
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := q.upsertBatch(ctx, points[start:end]); err != nil {
			return fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (q *qdrantVector) upsertBatch(ctx context.Context, batch []Point) error {
	structs := make([]*qdrant.PointStruct, 0, len(batch))
	for _, p := range batch {
		uuidStr := pointUUID(p.ID)
		payload := map[string]any{
			fieldRegulationID: p.RegulationID,
			fieldStatus:       p.Status,
			fieldVersion:      p.Version,
		}
		if uuidStr != p.ID {
			payload[PAYLOAD_ID_FIELD] = p.ID
		}
		if p.EffectiveDate != nil {
			payload[fieldEffectiveDate] = p.EffectiveDate.UTC().Format(time.RFC3339)
		}
		if p.ExpiryDate != nil {
			payload[fieldExpiryDate] = p.ExpiryDate.UTC().Format(time.RFC3339)
		}
		if p.Supersedes != "" {
			payload[fieldSupersedes] = p.Supersedes
		}
		for k, v := range p.Metadata {
			payload[k] = v
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         structs,
	})
	return err
}

func (q *qdrantVector) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(id)))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	return err
}

// MarkSuperseded sets status=superseded, expiry_date=expiryDate, and
// superseded_by=supersededBy on every point belonging to regulationID's
// version, via a filtered set-payload call rather than a read-then-upsert
// round trip — keeping the version transition to one write.
func (q *qdrantVector) MarkSuperseded(ctx context.Context, regulationID string, version string, expiryDate time.Time, supersededBy string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(fieldRegulationID, regulationID),
			qdrant.NewMatch(fieldVersion, version),
		},
	}
	payload := qdrant.NewValueMap(map[string]any{
		fieldStatus:       statusSuperseded,
		fieldExpiryDate:   expiryDate.UTC().Format(time.RFC3339),
		fieldSupersededBy: supersededBy,
	})
	_, err := q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: q.collection,
		Payload:        payload,
		PointsSelector: qdrant.NewPointsSelectorFilter(filter),
	})
	return err
}

// Search runs similarity search at the configured HNSW search-time ef. When
// query.AsOf is set it applies the temporal composite filter spec.md §4.5
// requires: status=active AND effective_date<=AsOf AND (expiry_date IS NULL
// OR expiry_date>=AsOf), narrowed by an optional exact-match metadata
// filter. When query.AsOf is nil it runs plain unfiltered semantic search
// over every point regardless of status or date, per spec.md §4.8's
// distinction between the two retrieval modes.
func (q *qdrantVector) Search(ctx context.Context, query TemporalQuery) ([]VectorResult, error) {
	ctx, cancel := context.WithTimeout(ctx, q.searchTimeout)
	defer cancel()

	k := query.TopK
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(query.Vector))
	copy(vec, query.Vector)

	var must []*qdrant.Condition
	if query.AsOf != nil {
		asOf := timestamppb.New(*query.AsOf)
		must = append(must,
			qdrant.NewMatch(fieldStatus, statusActive),
			qdrant.NewDatetimeRange(fieldEffectiveDate, &qdrant.DatetimeRange{Lte: asOf}),
		)
		expiryOK := &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{
				Filter: &qdrant.Filter{
					Should: []*qdrant.Condition{
						qdrant.NewIsNull(fieldExpiryDate),
						qdrant.NewDatetimeRange(fieldExpiryDate, &qdrant.DatetimeRange{Gte: asOf}),
					},
				},
			},
		}
		must = append(must, expiryOK)
	}
	for k, v := range query.MetadataEq {
		must = append(must, qdrant.NewMatch(k, v))
	}

	var ef *uint64
	if q.hnswEfSearch > 0 {
		v := uint64(q.hnswEfSearch)
		ef = &v
	}
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         &qdrant.Filter{Must: must},
		WithPayload:    qdrant.NewWithPayload(true),
		Params: &qdrant.SearchParams{
			HnswEf: ef,
		},
	})
	if err != nil {
		return nil, err
	}

	out := make([]VectorResult, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		res := VectorResult{
			ID:       uuidStr,
			Score:    float64(hit.Score),
			Metadata: make(map[string]string),
		}
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case PAYLOAD_ID_FIELD:
					res.ID = v.GetStringValue()
				case fieldRegulationID:
					res.RegulationID = v.GetStringValue()
				case fieldStatus:
					res.Status = v.GetStringValue()
				case fieldVersion:
					res.Version = v.GetStringValue()
				case fieldEffectiveDate:
					if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
						res.EffectiveDate = &t
					}
				case fieldExpiryDate:
					if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
						res.ExpiryDate = &t
					}
				case fieldSupersedes:
					res.Supersedes = v.GetStringValue()
				case fieldSupersededBy:
					// surfaced via Metadata for display only
					res.Metadata[k] = v.GetStringValue()
				default:
					res.Metadata[k] = v.GetStringValue()
				}
			}
		}
		out = append(out, res)
	}
	if query.ScoreThreshold > 0 {
		filtered := out[:0]
		for _, res := range out {
			if res.Score >= query.ScoreThreshold {
				filtered = append(filtered, res)
			}
		}
		out = filtered
	}
	return out, nil
}

// ActiveVersion returns the version of regulationID's current active point,
// scrolling with a limit of 1 since at most one version is ever active at a
// time per the supersession invariant.
func (q *qdrantVector) ActiveVersion(ctx context.Context, regulationID string) (string, bool, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(fieldRegulationID, regulationID),
			qdrant.NewMatch(fieldStatus, statusActive),
		},
	}
	limit := uint32(1)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", false, err
	}
	if len(points) == 0 {
		return "", false, nil
	}
	v, ok := points[0].Payload[fieldVersion]
	if !ok {
		return "", false, nil
	}
	return v.GetStringValue(), true, nil
}

func (q *qdrantVector) Stats(ctx context.Context) (Stats, error) {
	total, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return Stats{}, fmt.Errorf("count total: %w", err)
	}
	active, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldStatus, statusActive)},
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("count active: %w", err)
	}
	return Stats{
		PointCount:      total,
		ActiveCount:     active,
		SupersededCount: total - active,
		Dimension:       q.dimension,
		Distance:        q.metric,
	}, nil
}

func (q *qdrantVector) Dimension() int { return q.dimension }

func (q *qdrantVector) Close() error {
	return q.client.Close()
}
