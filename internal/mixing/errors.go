package mixing

import "fmt"

var (
	ErrEmptyPlaylist       = fmt.Errorf("empty playlist")
	ErrInvalidBeamWidth    = fmt.Errorf("beam width must be a positive integer")
	ErrInvalidClusterCount = fmt.Errorf("cluster count must be a positive integer")
	ErrInvalidWeights      = fmt.Errorf("invalid transition weights")
	ErrInvalidDistances    = fmt.Errorf("distance matrix must be square")
)
