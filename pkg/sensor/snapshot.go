package sensor

// Snapshot is everything the controller reads in one timestep. It is built
// once per tick and discarded when the tick ends.
type Snapshot struct {
	Step      uint64
	Proximity [ProximityChannels]float64
	Frame     Frame
}

// Reader is a single proximity channel.
type Reader interface {
	Read() float64
}

// ReadProximity samples every channel in index order.
func ReadProximity(channels [ProximityChannels]Reader) [ProximityChannels]float64 {
	var out [ProximityChannels]float64
	for i, ch := range channels {
		if ch != nil {
			out[i] = ch.Read()
		}
	}
	return out
}
