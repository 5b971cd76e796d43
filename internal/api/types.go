package api

import (
	"net/url"
	"strconv"
)

// TrafficQuery carries the traffic filters as query parameters. Empty
// fields are omitted.
type TrafficQuery struct {
	MsgType string
	Node    string
	Limit   int
}

func (q TrafficQuery) values() url.Values {
	v := url.Values{}
	if q.MsgType != "" {
		v.Set("msg_type", q.MsgType)
	}
	if q.Node != "" {
		v.Set("node", q.Node)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}
