package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"subwatch/internal/fetch"
	"subwatch/internal/transport"
)

// nodeTag is the opaque numeric tag the upstream forward format requires on
// every node. The value is carried through verbatim.
const nodeTag = 114514

// gjson paths into the raw post detail document.
const (
	detailTextPath  = "modules.module_dynamic.desc.text"
	detailDrawPath  = "modules.module_dynamic.major.draw.items"
	detailImageAttr = "src"
)

var ErrNoCover = errors.New("live snapshot has no cover image")

// buildLiveText builds the single live announcement shared by all chats.
// The message format requires a cover image reference.
func buildLiveText(snap *fetch.LiveSnapshot, roomURL string) (string, error) {
	if strings.TrimSpace(snap.Cover) == "" {
		return "", ErrNoCover
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s is live!\n%s\n", snap.Author, snap.Title)
	b.WriteString(snap.Cover)
	b.WriteString("\nRoom: ")
	b.WriteString(roomURL)
	return b.String(), nil
}

// buildPostNodes builds the ordered node sequence for a new post, once per
// transition. Every chat notified for the same transition sees identical
// content. Absent optional fields are simply omitted.
func (s *Service) buildPostNodes(ctx context.Context, snap *fetch.PostSnapshot) ([]transport.Node, error) {
	pageURL := fmt.Sprintf(s.cfg.PostPageURL, snap.ID)
	img, err := s.renderer.RenderPage(ctx, pageURL, s.cfg.Selector)
	if err != nil {
		return nil, fmt.Errorf("render post page: %w", err)
	}

	nodes := []transport.Node{
		{Author: snap.Author, Tag: nodeTag, ImageURL: img},
	}

	if txt := snap.Detail.Get(detailTextPath); txt.Exists() && txt.String() != "" {
		nodes = append(nodes,
			transport.Node{Author: snap.Author, Tag: nodeTag, Text: "Post content:"},
			transport.Node{Author: snap.Author, Tag: nodeTag, Text: txt.String()},
		)
	}

	if items := snap.Detail.Get(detailDrawPath); items.IsArray() {
		arr := items.Array()
		if len(arr) > 0 {
			nodes = append(nodes, transport.Node{Author: snap.Author, Tag: nodeTag, Text: "Post images:"})
			for _, it := range arr {
				nodes = append(nodes, transport.Node{
					Author:   snap.Author,
					Tag:      nodeTag,
					ImageURL: it.Get(detailImageAttr).String(),
				})
			}
		}
	}

	return nodes, nil
}
