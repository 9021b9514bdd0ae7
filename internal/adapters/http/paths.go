package http

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	basePath    = "/bigbluebutton"
	roomsPath   = basePath + "/rooms"
	serversPath = basePath + "/servers"
)

// namedRoutes are the pages reachable through PathTo. ":id" is filled from params.
var namedRoutes = map[string]string{
	"home":                  "/",
	"rooms":                 roomsPath,
	"new room":              roomsPath + "/new",
	"room":                  roomsPath + "/:id",
	"edit room":             roomsPath + "/:id/edit",
	"join room":             roomsPath + "/:id/join",
	"join mobile room":      roomsPath + "/:id/join_mobile",
	"invite room":           roomsPath + "/:id/invite",
	"auth room":             roomsPath + "/:id/auth",
	"running room":          roomsPath + "/:id/running",
	"end room":              roomsPath + "/:id/end",
	"room recordings":       roomsPath + "/:id/recordings",
	"fetch room recordings": roomsPath + "/:id/fetch_recordings",
	"servers":               serversPath,
	"server":                serversPath + "/:id",
}

var pageAliases = map[string]string{
	"home":          "home",
	"new room":      "new room",
	"rooms index":   "rooms",
	"create room":   "rooms",
	"servers index": "servers",
}

// PathTo maps a human page name ("rooms index", "the edit room page") to its path. Params not
// used by the route become a key-sorted query string.
func PathTo(page string, params map[string]string) (string, error) {
	name, ok := pageAliases[page]
	if !ok {
		inner, found := strings.CutPrefix(page, "the ")
		inner, found2 := strings.CutSuffix(inner, " page")
		if !found || !found2 {
			return "", fmt.Errorf("can't find mapping from %q to a path", page)
		}
		name = inner
	}
	route, ok := namedRoutes[name]
	if !ok {
		return "", fmt.Errorf("can't find mapping from %q to a path", page)
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	if strings.Contains(route, ":id") {
		id := query.Get("id")
		if id == "" {
			return "", fmt.Errorf("page %q needs an id", page)
		}
		route = strings.ReplaceAll(route, ":id", url.PathEscape(id))
		query.Del("id")
	}
	if len(query) == 0 {
		return route, nil
	}
	return route + "?" + query.Encode(), nil
}

func roomPath(param string) string {
	return roomsPath + "/" + url.PathEscape(param)
}

func invitePath(param string) string {
	return roomPath(param) + "/invite"
}
