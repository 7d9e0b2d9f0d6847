// Package browserdriver is the typed client contract to the out-of-process
// browser-automation driver, with two entry points: parse_catalog and
// parse_card. The driver runs as a separate supervised process (browser
// bindings are frequently not fork-safe, so a child process isolates
// crashes), reached here over gRPC (google.golang.org/grpc +
// google.golang.org/protobuf). Request/response envelopes use
// structpb.Struct so the wire contract needs no separate protoc codegen
// step while still riding real protobuf messages end to end.
package browserdriver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// CatalogStatus mirrors the statuses the browser library can return for
// parse_catalog.
type CatalogStatus string

const (
	CatalogSuccess             CatalogStatus = "SUCCESS"
	CatalogEmpty               CatalogStatus = "EMPTY"
	CatalogProxyBlocked        CatalogStatus = "PROXY_BLOCKED"
	CatalogProxyAuthRequired   CatalogStatus = "PROXY_AUTH_REQUIRED"
	CatalogCaptchaFailed       CatalogStatus = "CAPTCHA_FAILED"
	CatalogLoadTimeout         CatalogStatus = "LOAD_TIMEOUT"
	CatalogPageNotDetected     CatalogStatus = "PAGE_NOT_DETECTED"
	CatalogWrongPage           CatalogStatus = "WRONG_PAGE"
	CatalogServerUnavailable   CatalogStatus = "SERVER_UNAVAILABLE"
)

// CardStatus mirrors parse_card's status set.
type CardStatus string

const (
	CardSuccess           CardStatus = "SUCCESS"
	CardProxyBlocked      CardStatus = "PROXY_BLOCKED"
	CardCaptchaFailed     CardStatus = "CAPTCHA_FAILED"
	CardNotFound          CardStatus = "NOT_FOUND"
	CardPageNotDetected   CardStatus = "PAGE_NOT_DETECTED"
	CardWrongPage         CardStatus = "WRONG_PAGE"
	CardServerUnavailable CardStatus = "SERVER_UNAVAILABLE"
)

// Listing is one search-result item as returned by parse_catalog.
type Listing struct {
	AvitoItemID   string
	Title         string
	Price         *float64
	Snippet       string
	SellerName    string
	SellerReviews *int
	ImageURLs     []string
}

// CatalogParseResult is the parse_catalog response.
type CatalogParseResult struct {
	Status           CatalogStatus
	Listings         []Listing
	ResumePageNumber int
}

// ParseCatalogRequest carries every knob parse_catalog accepts.
type ParseCatalogRequest struct {
	ProxyID     string
	URL         string
	Fields      []string
	MaxPages    int
	StartPage   int
	Sort        string
	Condition   string
	IncludeHTML bool
}

// CardData is the parse_card response payload for one listing.
type CardData struct {
	Title           string
	Price           *float64
	Characteristics map[string]string
	Description     string
	ViewCount       *int
}

type CardParseResult struct {
	Status CardStatus
	Data   CardData
}

type ParseCardRequest struct {
	ProxyID     string
	URL         string
	Fields      []string
	IncludeHTML bool
}

// Client is the contract browser workers depend on; a real implementation
// dials the out-of-process driver over gRPC, a fake implementation backs
// tests.
type Client interface {
	ParseCatalog(ctx context.Context, req ParseCatalogRequest) (*CatalogParseResult, error)
	ParseCard(ctx context.Context, req ParseCardRequest) (*CardParseResult, error)
	// ContinueFrom re-invokes a catalog parse after a proxy rotation,
	// resuming from the page the prior call checkpointed.
	ContinueFrom(ctx context.Context, req ParseCatalogRequest, resumePage int) (*CatalogParseResult, error)
}

const (
	methodParseCatalog = "/browserdriver.v1.BrowserDriver/ParseCatalog"
	methodParseCard     = "/browserdriver.v1.BrowserDriver/ParseCard"
)

type grpcClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient wraps an existing connection to the browser-driver process.
func NewGRPCClient(cc grpc.ClientConnInterface) Client {
	return &grpcClient{cc: cc}
}

func (c *grpcClient) ParseCatalog(ctx context.Context, req ParseCatalogRequest) (*CatalogParseResult, error) {
	in, err := structpb.NewStruct(map[string]any{
		"proxy_id":     req.ProxyID,
		"url":          req.URL,
		"fields":       toAnySlice(req.Fields),
		"max_pages":    float64(req.MaxPages),
		"start_page":   float64(req.StartPage),
		"sort":         req.Sort,
		"condition":    req.Condition,
		"include_html": req.IncludeHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("browserdriver: encode parse_catalog request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodParseCatalog, in, out); err != nil {
		return nil, fmt.Errorf("browserdriver: parse_catalog rpc: %w", err)
	}
	return decodeCatalogResult(out)
}

func (c *grpcClient) ContinueFrom(ctx context.Context, req ParseCatalogRequest, resumePage int) (*CatalogParseResult, error) {
	req.StartPage = resumePage
	return c.ParseCatalog(ctx, req)
}

func (c *grpcClient) ParseCard(ctx context.Context, req ParseCardRequest) (*CardParseResult, error) {
	in, err := structpb.NewStruct(map[string]any{
		"proxy_id":     req.ProxyID,
		"url":          req.URL,
		"fields":       toAnySlice(req.Fields),
		"include_html": req.IncludeHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("browserdriver: encode parse_card request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodParseCard, in, out); err != nil {
		return nil, fmt.Errorf("browserdriver: parse_card rpc: %w", err)
	}
	return decodeCardResult(out)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func decodeCatalogResult(out *structpb.Struct) (*CatalogParseResult, error) {
	m := out.AsMap()
	res := &CatalogParseResult{
		Status:           CatalogStatus(stringField(m, "status")),
		ResumePageNumber: intField(m, "resume_page_number"),
	}
	rawListings, _ := m["listings"].([]any)
	for _, rl := range rawListings {
		lm, ok := rl.(map[string]any)
		if !ok {
			continue
		}
		res.Listings = append(res.Listings, Listing{
			AvitoItemID:   stringField(lm, "avito_item_id"),
			Title:         stringField(lm, "title"),
			Price:         floatPtrField(lm, "price"),
			Snippet:       stringField(lm, "snippet"),
			SellerName:    stringField(lm, "seller_name"),
			SellerReviews: intPtrField(lm, "seller_reviews"),
			ImageURLs:     stringSliceField(lm, "image_urls"),
		})
	}
	return res, nil
}

func decodeCardResult(out *structpb.Struct) (*CardParseResult, error) {
	m := out.AsMap()
	res := &CardParseResult{Status: CardStatus(stringField(m, "status"))}
	dm, _ := m["data"].(map[string]any)
	res.Data = CardData{
		Title:       stringField(dm, "title"),
		Price:       floatPtrField(dm, "price"),
		Description: stringField(dm, "description"),
		ViewCount:   intPtrField(dm, "view_count"),
	}
	if chars, ok := dm["characteristics"].(map[string]any); ok {
		res.Data.Characteristics = make(map[string]string, len(chars))
		for k, v := range chars {
			if s, ok := v.(string); ok {
				res.Data.Characteristics[k] = s
			}
		}
	}
	return res, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

func floatPtrField(m map[string]any, key string) *float64 {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

func intPtrField(m map[string]any, key string) *int {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	i := int(f)
	return &i
}

func stringSliceField(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
