package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/detroit-blocks/blockline/internal/address"
	"github.com/detroit-blocks/blockline/internal/geometry"
	"github.com/detroit-blocks/blockline/internal/ingest"
	"github.com/detroit-blocks/blockline/internal/model"
	"github.com/detroit-blocks/blockline/internal/store"
	"github.com/detroit-blocks/blockline/pkg/geodata"
)

var (
	segmentStreetsShp string
	segmentParcelsShp string
	segmentFetch      bool
	segmentWhere      string
	segmentStreet     string
	segmentBuffer     float64
	segmentThreshold  float64
	segmentDryRun     bool
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Cut street centerlines into blocks and join parcels by geometry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		targets, candidates, features, err := loadGeometry(ctx)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return eris.New("no street centerlines loaded")
		}

		threshold := cfg.Segment.EndpointThresholdMeters
		if cmd.Flags().Changed("threshold") {
			threshold = segmentThreshold
		}
		buffer := cfg.Segment.BufferMeters
		if cmd.Flags().Changed("buffer") {
			buffer = segmentBuffer
		}

		blocks := segmentStreets(ctx, targets, candidates, threshold, buffer)
		memberships, unmatched := geometry.AssignParcels(features, blocks)
		if unmatched > 0 {
			zap.L().Info("parcels outside every corridor",
				zap.Int("unmatched", unmatched),
				zap.Int("total", len(features)),
			)
		}

		if !segmentDryRun {
			if err := persistSegmentation(ctx, blocks, memberships); err != nil {
				return err
			}
		}

		assigned := 0
		for _, parcels := range memberships {
			assigned += len(parcels)
		}
		out, _ := json.MarshalIndent(map[string]int{
			"streets":   len(targets),
			"blocks":    len(blocks),
			"parcels":   len(features),
			"assigned":  assigned,
			"unmatched": unmatched,
		}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// loadGeometry reads streets and parcel features from shapefiles or the
// feature service. With --street only the named street is segmented, but the
// full set still serves as crossing candidates.
func loadGeometry(ctx context.Context) (targets, candidates []geometry.Street, features []geometry.ParcelFeature, err error) {
	var streets []geometry.Street

	switch {
	case segmentFetch:
		client := geodata.NewClient(
			cfg.Geodata.BaseURL, cfg.Geodata.ParcelLayer, cfg.Geodata.StreetLayer,
			geodata.WithPageSize(cfg.Geodata.PageSize),
			geodata.WithConcurrency(cfg.Geodata.Concurrency),
			geodata.WithRateLimit(cfg.Geodata.RatePerSecond),
			geodata.WithRetry(cfg.Retry.Resilience()),
			geodata.WithCircuitBreaker(cfg.Geodata.Breaker()),
		)
		streets, err = client.FetchStreets(ctx, segmentWhere)
		if err != nil {
			return nil, nil, nil, err
		}
		features, err = client.FetchParcels(ctx, segmentWhere)
		if err != nil {
			return nil, nil, nil, err
		}
	case segmentStreetsShp != "":
		streets, err = ingest.ReadStreetShapefile(segmentStreetsShp)
		if err != nil {
			return nil, nil, nil, err
		}
		if segmentParcelsShp != "" {
			features, err = ingest.ReadParcelShapefile(segmentParcelsShp)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	default:
		return nil, nil, nil, eris.New("either --fetch or --streets is required")
	}

	if segmentStreet != "" {
		want := address.Normalize(segmentStreet)
		var filtered []geometry.Street
		for _, s := range streets {
			if address.Normalize(s.Name) == want {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) == 0 {
			return nil, nil, nil, eris.Errorf("street %q not found", segmentStreet)
		}
		return filtered, streets, features, nil
	}
	return streets, streets, features, nil
}

// segmentStreets runs intersection detection, segmentation, and buffering
// per street with bounded fan-out. Output order follows input street order.
func segmentStreets(ctx context.Context, streets, candidates []geometry.Street, threshold, buffer float64) []geometry.Block {
	concurrency := cfg.Geodata.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	perStreet := make([][]geometry.Block, len(streets))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, street := range streets {
		i, street := i, street
		g.Go(func() error {
			cross := make([]geometry.CrossStreet, 0, len(candidates))
			for _, c := range candidates {
				if c.ID == street.ID && c.Name == street.Name {
					continue
				}
				cross = append(cross, geometry.CrossStreet{ID: c.ID, Name: c.Name, Line: c.Line})
			}

			intersections := geometry.FindIntersections(street, cross)
			ordered := geometry.OrderAlongLine(street.Line, intersections)
			blocks := geometry.Segment(street, ordered, geometry.SegmentOptions{
				EndpointThresholdMeters: threshold,
			})
			buffered := geometry.Buffer(blocks, buffer)

			mu.Lock()
			perStreet[i] = buffered
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures drop single blocks

	var all []geometry.Block
	for _, blocks := range perStreet {
		all = append(all, blocks...)
	}
	return all
}

// persistSegmentation writes corridor blocks with EWKB geometry plus parcel
// memberships and the run record.
func persistSegmentation(ctx context.Context, blocks []geometry.Block, memberships map[string][]model.Parcel) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, "geometric")
	if err != nil {
		return err
	}

	summaries := make([]model.BlockSummary, 0, len(blocks))
	rows := make([]store.ParcelRow, 0)
	total := 0
	for _, b := range blocks {
		parcels := memberships[b.ID]
		total += len(parcels)

		var geomBytes []byte
		if b.Corridor != nil {
			geomBytes, err = ewkb.Marshal(b.Corridor, binary.LittleEndian)
			if err != nil {
				zap.L().Warn("corridor not encodable, storing block without geometry",
					zap.String("block", b.ID),
					zap.Error(err),
				)
				geomBytes = nil
			}
		}

		minHouse, maxHouse := houseNumberSpan(parcels)
		summaries = append(summaries, model.BlockSummary{
			BlockID:        b.ID,
			Street:         b.Street,
			FromCross:      b.FromCross,
			ToCross:        b.ToCross,
			ParcelCount:    len(parcels),
			MinHouseNumber: minHouse,
			MaxHouseNumber: maxHouse,
			Geometry:       geomBytes,
			UpdatedAt:      time.Now().UTC(),
		})
		for _, p := range parcels {
			rows = append(rows, store.ParcelRow{BlockID: b.ID, Parcel: p})
		}
	}

	if _, err := st.UpsertBlocks(ctx, summaries); err != nil {
		return err
	}
	if _, err := st.UpsertParcels(ctx, rows); err != nil {
		return err
	}

	run.Total = total
	run.Assigned = total
	run.Blocks = len(blocks)
	return st.FinishRun(ctx, run)
}

// houseNumberSpan parses the addresses of a block's parcels and returns the
// lowest and highest house numbers seen, or zeros when none parse.
func houseNumberSpan(parcels []model.Parcel) (int, int) {
	minHouse, maxHouse := 0, 0
	for _, p := range parcels {
		parsed := address.Parse(p.Address)
		if parsed == nil {
			continue
		}
		if minHouse == 0 || parsed.HouseNumber < minHouse {
			minHouse = parsed.HouseNumber
		}
		if parsed.HouseNumber > maxHouse {
			maxHouse = parsed.HouseNumber
		}
	}
	return minHouse, maxHouse
}

func init() {
	segmentCmd.Flags().StringVar(&segmentStreetsShp, "streets", "", "street centerline shapefile")
	segmentCmd.Flags().StringVar(&segmentParcelsShp, "parcels", "", "parcel shapefile")
	segmentCmd.Flags().BoolVar(&segmentFetch, "fetch", false, "fetch streets and parcels from the feature service")
	segmentCmd.Flags().StringVar(&segmentWhere, "where", "", "feature service where clause")
	segmentCmd.Flags().StringVar(&segmentStreet, "street", "", "segment a single street by name")
	segmentCmd.Flags().Float64Var(&segmentBuffer, "buffer", 0, "corridor half-width in meters (default from config)")
	segmentCmd.Flags().Float64Var(&segmentThreshold, "threshold", 0, "endpoint coincidence threshold in meters (default from config)")
	segmentCmd.Flags().BoolVar(&segmentDryRun, "dry-run", false, "segment without persisting")
	rootCmd.AddCommand(segmentCmd)
}
