package remote

type EmptyResponse struct {
}

type InfoResponse struct {
	Revision    string
	SubRevision string
	Width       int
	Height      int
}

type LevelRequest struct {
	Level int
}

type ColorRequest struct {
	R, G, B, A uint8
}

type OrientationRequest struct {
	Orientation uint8
}

type DisplayImageRequest struct {
	X     int
	Y     int
	Image []byte
}
