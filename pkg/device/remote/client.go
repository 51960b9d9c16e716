package remote

import (
	"bytes"
	"image"
	"image/color"
	"net/rpc"
	"sync"

	"github.com/disintegration/imaging"

	"smartscreen/pkg/proto"
)

// New dials a display exported with Proxy.
func New(addr string) (*Client, error) {
	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{rpc: client}
	if err := c.refresh(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return c, nil
}

type Client struct {
	rpc *rpc.Client

	mu   sync.RWMutex
	info InfoResponse
}

func (c *Client) refresh() error {
	var info InfoResponse
	if err := c.rpc.Call("Service.Info", EmptyResponse{}, &info); err != nil {
		return err
	}
	c.mu.Lock()
	c.info = info
	c.mu.Unlock()
	return nil
}

func (c *Client) command(name string) error {
	return c.rpc.Call("Service.Command", name, &EmptyResponse{})
}

func (c *Client) Revision() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Revision
}

func (c *Client) SubRevision() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.SubRevision
}

func (c *Client) Width() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Width
}

func (c *Client) Height() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Height
}

func (c *Client) Reset() error {
	return c.command("reset")
}

func (c *Client) InitializeComm() error {
	if err := c.command("initialize"); err != nil {
		return err
	}
	return c.refresh()
}

func (c *Client) Clear() error {
	return c.command("clear")
}

func (c *Client) ScreenOff() error {
	return c.command("screen-off")
}

func (c *Client) ScreenOn() error {
	return c.command("screen-on")
}

// SetBrightness is checked locally so that contract violations keep their
// type across the wire.
func (c *Client) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	return c.rpc.Call("Service.SetBrightness", LevelRequest{Level: level}, &EmptyResponse{})
}

func (c *Client) SetBackplateLedColor(col color.RGBA) error {
	return c.rpc.Call("Service.SetBackplateLedColor", ColorRequest{R: col.R, G: col.G, B: col.B, A: col.A}, &EmptyResponse{})
}

func (c *Client) SetOrientation(o proto.Orientation) error {
	if !o.Valid() {
		return &proto.InputError{Field: "orientation", Value: int(o), Reason: "unknown orientation"}
	}
	if err := c.rpc.Call("Service.SetOrientation", OrientationRequest{Orientation: uint8(o)}, &EmptyResponse{}); err != nil {
		return err
	}
	return c.refresh()
}

func (c *Client) DisplayImage(img image.Image, x, y int) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return err
	}

	return c.rpc.Call("Service.DisplayImage", &DisplayImageRequest{
		X:     x,
		Y:     y,
		Image: buf.Bytes(),
	}, &EmptyResponse{})
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
