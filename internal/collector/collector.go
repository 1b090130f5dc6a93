package collector

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/identity"
	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

// Processor turns RIS-Live UpdateFrames into ip_rib rows, registering the
// peer and base_attrs rows each frame depends on along the way. It mirrors
// handle_update's per-announcement, per-withdrawal loop: one prefix failing
// never stops the rest of the frame from being processed.
type Processor struct {
	peers   *store.PeerStore
	attrs   *store.BaseAttrStore
	updates *store.UpdateStore
	logger  *zap.Logger
}

func NewProcessor(peers *store.PeerStore, attrs *store.BaseAttrStore, updates *store.UpdateStore, logger *zap.Logger) *Processor {
	return &Processor{peers: peers, attrs: attrs, updates: updates, logger: logger}
}

func (p *Processor) Handle(ctx context.Context, frame UpdateFrame) {
	if frame.Timestamp == 0 {
		p.logger.Warn("skipping update frame: missing timestamp")
		return
	}
	ts := time.Unix(int64(frame.Timestamp), 0).UTC()

	peerAddr := frame.Peer
	if peerAddr == "" {
		peerAddr = "0.0.0.0"
	}
	peerASN, _ := strconv.ParseInt(frame.PeerASN.String(), 10, 64)

	peerHashID := identity.PeerHashID(peerAddr, peerASN)
	if err := p.peers.UpsertPeer(ctx, model.Peer{
		HashID:       peerHashID,
		RouterHashID: identity.NewRandomUUID(),
		PeerAddr:     peerAddr,
		PeerASN:      peerASN,
		IsIPv4:       isIPv4(peerAddr),
		State:        "up",
	}); err != nil {
		p.logger.Error("upserting peer", zap.Error(err), zap.String("peer", peerAddr))
		return
	}

	for _, ann := range frame.Announcements {
		for _, pfx := range ann.Prefixes {
			if err := p.handlePrefix(ctx, pfx, frame.Path, peerHashID, peerASN, ann.NextHop, ts, false); err != nil {
				p.logger.Error("processing announcement", zap.Error(err), zap.String("prefix", pfx))
				continue
			}
			metrics.UpdatesIngestedTotal.WithLabelValues("announce").Inc()
		}
	}

	for _, raw := range frame.Withdrawals {
		pfx := withdrawalPrefix(raw)
		if pfx == "" {
			continue
		}
		if err := p.handlePrefix(ctx, pfx, nil, peerHashID, peerASN, "", ts, true); err != nil {
			p.logger.Error("processing withdrawal", zap.Error(err), zap.String("prefix", pfx))
			continue
		}
		metrics.UpdatesIngestedTotal.WithLabelValues("withdraw").Inc()
	}
}

func (p *Processor) handlePrefix(ctx context.Context, pfx string, asPathFromFrame []int64, peerHashID string, peerASN int64, nextHop string, ts time.Time, withdrawn bool) error {
	idx := strings.LastIndex(pfx, "/")
	if idx < 0 {
		return nil
	}
	prefixLen, err := strconv.Atoi(pfx[idx+1:])
	if err != nil {
		return nil
	}

	asPath := asPathFromFrame
	var originAS int64
	if withdrawn {
		asPath = []int64{peerASN}
		originAS = peerASN
	} else {
		if len(asPath) == 0 {
			originAS = peerASN
		} else {
			originAS = asPath[len(asPath)-1]
		}
	}
	if idxComma := strings.IndexByte(nextHop, ','); idxComma >= 0 {
		nextHop = nextHop[:idxComma]
	}

	fullPath := appendOrigin(asPath, originAS)
	baseAttrHashID := identity.BaseAttrHashID(fullPath, originAS, nextHop)
	if err := p.attrs.UpsertBaseAttrs(ctx, model.BaseAttrs{
		HashID:        baseAttrHashID,
		PeerHashID:    peerHashID,
		Origin:        "IGP",
		ASPath:        fullPath,
		ASPathCount:   len(fullPath),
		OriginAS:      originAS,
		NextHop:       nextHop,
		NextHopIsIPv4: nextHop == "" || isIPv4(nextHop),
		Timestamp:     ts,
	}); err != nil {
		return err
	}

	return p.updates.InsertUpdate(ctx, model.Update{
		HashID:              identity.NewRandomUUID(),
		BaseAttrHashID:      baseAttrHashID,
		PeerHashID:          peerHashID,
		IsIPv4:              isIPv4(pfx),
		OriginAS:            originAS,
		Prefix:              pfx,
		PrefixLen:           prefixLen,
		Timestamp:           ts,
		FirstAddedTimestamp: ts,
		IsWithdrawn:         withdrawn,
		PathID:              0,
	})
}

// appendOrigin mirrors get_or_create_base_attrs's path normalization: an
// empty path becomes [originAS], and a non-empty path gets originAS
// appended only if it isn't already the last hop. An originAS of 0 is
// never added, so an empty path with originAS 0 stays empty (nil).
func appendOrigin(path []int64, originAS int64) []int64 {
	if len(path) == 0 {
		if originAS == 0 {
			return nil
		}
		return []int64{originAS}
	}
	if originAS != 0 && path[len(path)-1] != originAS {
		out := make([]int64, len(path)+1)
		copy(out, path)
		out[len(path)] = originAS
		return out
	}
	return path
}

func isIPv4(addr string) bool {
	return !strings.Contains(addr, ":")
}

// withdrawalPrefix accepts either a bare JSON string or a {"prefix": ...}
// object, matching the two shapes RIS Live has sent for withdrawals.
func withdrawalPrefix(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Prefix string `json:"prefix"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Prefix
	}
	return ""
}
