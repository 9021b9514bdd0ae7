// Package bbb talks to BigBlueButton servers over their checksum-signed HTTP API.
package bbb

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/metrics"
)

const returnCodeSuccess = "SUCCESS"

// Client signs and sends calls to one server.
type Client struct {
	http   *resty.Client
	apiURL string
	secret string
}

// NewClient builds a client for a server whose URL is either the base or the ".../api" endpoint.
func NewClient(serverURL, secret string, timeout time.Duration) *Client {
	base := strings.TrimRight(serverURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetHeader("User-Agent", "Rooms/1.0").
			SetTimeout(timeout),
		apiURL: base,
		secret: secret,
	}
}

func (c *Client) checksum(call, query string) string {
	sum := sha1.Sum([]byte(call + query + c.secret))
	return hex.EncodeToString(sum[:])
}

// URL returns the signed address of an API call without performing it.
func (c *Client) URL(call string, params url.Values) string {
	query := params.Encode()
	signed := "checksum=" + c.checksum(call, query)
	if query != "" {
		signed = query + "&" + signed
	}
	return c.apiURL + "/" + call + "?" + signed
}

type envelope struct {
	XMLName    xml.Name `xml:"response"`
	ReturnCode string   `xml:"returncode"`
	MessageKey string   `xml:"messageKey"`
	Message    string   `xml:"message"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if info, ok := core.RequestInfoFrom(ctx); ok {
		if info.ForwardedFor != "" {
			req.SetHeader("X-Forwarded-For", info.ForwardedFor)
		}
		if info.RequestID != "" {
			req.SetHeader("X-Request-ID", info.RequestID)
		}
	}
	return req
}

// get performs a signed GET and decodes the XML answer into out, which must embed the envelope fields.
func (c *Client) get(ctx context.Context, call string, params url.Values, out any) (err error) {
	defer func() { metrics.RecordRemoteCall("bigbluebutton", call, err) }()

	resp, err := c.request(ctx).Get(c.URL(call, params))
	if err != nil {
		return &core.RemoteError{Call: call, Cause: err}
	}
	return decode(call, resp, out)
}

// post sends a signed form body, used by calls whose payload does not fit in a URL.
func (c *Client) post(ctx context.Context, call string, params url.Values, out any) (err error) {
	defer func() { metrics.RecordRemoteCall("bigbluebutton", call, err) }()

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("checksum", c.checksum(call, params.Encode()))
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		Post(c.apiURL + "/" + call)
	if err != nil {
		return &core.RemoteError{Call: call, Cause: err}
	}
	return decode(call, resp, out)
}

func decode(call string, resp *resty.Response, out any) error {
	if resp.StatusCode() >= http.StatusBadRequest {
		return &core.RemoteError{Call: call, Message: fmt.Sprintf("%s returned HTTP %d", call, resp.StatusCode())}
	}
	var env envelope
	if err := xml.Unmarshal(resp.Body(), &env); err != nil {
		return &core.RemoteError{Call: call, Message: "invalid response from server", Cause: err}
	}
	if env.ReturnCode != returnCodeSuccess {
		return &core.RemoteError{Call: call, Key: env.MessageKey, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := xml.Unmarshal(resp.Body(), out); err != nil {
		return &core.RemoteError{Call: call, Message: "invalid response from server", Cause: err}
	}
	return nil
}

func (c *Client) IsMeetingRunning(ctx context.Context, meetingID string) (bool, error) {
	var out struct {
		Running bool `xml:"running"`
	}
	err := c.get(ctx, "isMeetingRunning", url.Values{"meetingID": {meetingID}}, &out)
	return out.Running, err
}

func (c *Client) CreateMeeting(ctx context.Context, params url.Values) error {
	return c.get(ctx, "create", params, nil)
}

func (c *Client) EndMeeting(ctx context.Context, meetingID, moderatorPassword string) error {
	return c.get(ctx, "end", url.Values{"meetingID": {meetingID}, "password": {moderatorPassword}}, nil)
}

// DefaultConfigXML fetches the client configuration document. The answer is the raw document.
func (c *Client) DefaultConfigXML(ctx context.Context) (doc string, err error) {
	const call = "getDefaultConfigXML"
	defer func() { metrics.RecordRemoteCall("bigbluebutton", call, err) }()

	resp, err := c.request(ctx).Get(c.URL(call, url.Values{}))
	if err != nil {
		return "", &core.RemoteError{Call: call, Cause: err}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return "", &core.RemoteError{Call: call, Message: fmt.Sprintf("%s returned HTTP %d", call, resp.StatusCode())}
	}
	var env envelope
	if xml.Unmarshal(resp.Body(), &env) == nil && env.ReturnCode != "" && env.ReturnCode != returnCodeSuccess {
		return "", &core.RemoteError{Call: call, Key: env.MessageKey, Message: env.Message}
	}
	return string(resp.Body()), nil
}

// SetConfigXML stores a configuration document for a meeting and returns its token.
func (c *Client) SetConfigXML(ctx context.Context, meetingID, doc string) (string, error) {
	var out struct {
		Token string `xml:"configToken"`
	}
	err := c.post(ctx, "setConfigXML", url.Values{"meetingID": {meetingID}, "configXML": {doc}}, &out)
	return out.Token, err
}

// RawRecording is a recording element as the server returns it.
type RawRecording struct {
	RecordID  string `xml:"recordID"`
	MeetingID string `xml:"meetingID"`
	Name      string `xml:"name"`
	Published bool   `xml:"published"`
	StartTime int64  `xml:"startTime"`
	EndTime   int64  `xml:"endTime"`
	Metadata  struct {
		Items []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"metadata"`
	Formats []struct {
		Type   string `xml:"type"`
		URL    string `xml:"url"`
		Length int    `xml:"length"`
	} `xml:"playback>format"`
}

func (c *Client) GetRecordings(ctx context.Context, params url.Values) ([]RawRecording, error) {
	var out struct {
		Recordings []RawRecording `xml:"recordings>recording"`
	}
	err := c.get(ctx, "getRecordings", params, &out)
	return out.Recordings, err
}
