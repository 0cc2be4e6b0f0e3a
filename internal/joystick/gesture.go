package joystick

// Phase of a single drag interaction.
type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// Command is the joystick payload emitted for every move and once on release.
type Command struct {
	DX        float64   `json:"dx"`
	DY        float64   `json:"dy"`
	Direction Direction `json:"direction"`
	Code      int       `json:"code"`
}

// Stop is emitted on release so the robot halts.
var Stop = Command{Direction: Center, Code: JoystickCode(Center)}

// Gesture is the state of one drag. It is a value: every transition returns a
// new Gesture and the caller keeps the one it owns.
type Gesture struct {
	mapper Mapper
	phase  Phase
	last   DragVector
}

// NewGesture falls back to DefaultMapper when m has no usable radius.
func NewGesture(m Mapper) Gesture {
	if !(m.MaxRadius > 0) {
		m = DefaultMapper()
	}
	return Gesture{mapper: m}
}

func (g Gesture) Phase() Phase { return g.phase }

// Last is the most recent mapped vector; zero when idle.
func (g Gesture) Last() DragVector { return g.last }

func (g Gesture) Mapper() Mapper { return g.mapper }

// Start begins a drag with the offset reset to the origin.
func (g Gesture) Start() Gesture {
	g.phase = Dragging
	g.last = DragVector{}
	return g
}

// Move maps the current offset from the gesture origin. A move while idle
// starts the drag implicitly.
func (g Gesture) Move(rawDX, rawDY float64) (Gesture, Command) {
	if g.phase == Idle {
		g = g.Start()
	}
	g.last = g.mapper.Map(rawDX, rawDY)
	n := g.last.Normalized()
	c := Classify(n.X, n.Y)
	return g, Command{
		DX:        n.X,
		DY:        n.Y,
		Direction: c.Direction,
		Code:      c.Code,
	}
}

// Release returns the handle to the origin and always yields Stop.
func (g Gesture) Release() (Gesture, Command) {
	g.phase = Idle
	g.last = DragVector{}
	return g, Stop
}
