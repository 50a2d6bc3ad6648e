package geometry

// Yaw thresholds for pose classification.
const (
	frontalYaw = 0.1
	turnedYaw  = 0.15
)

// Angle is a rough head pose estimate derived from landmarks.
// Yaw ranges roughly -0.5..0.5, negative meaning the face is turned left.
type Angle struct {
	Yaw       float64 `json:"yaw"`
	IsFrontal bool    `json:"is_frontal"`
	IsRight   bool    `json:"is_right"`
	IsLeft    bool    `json:"is_left"`
}

// EstimateAngle estimates yaw from the nose bridge tip relative to the chin line.
// Returns false when the required features are missing or degenerate.
func EstimateAngle(landmarks LandmarkSet) (Angle, bool) {
	noseBridge := landmarks["nose_bridge"]
	chin := landmarks["chin"]
	if len(noseBridge) == 0 || len(chin) == 0 {
		return Angle{}, false
	}

	noseTip := noseBridge[len(noseBridge)-1]
	chinLeft := chin[0]
	chinRight := chin[len(chin)-1]

	faceWidth := float64(chinRight.X - chinLeft.X)
	if faceWidth <= 0 {
		return Angle{}, false
	}
	chinCenterX := float64(chinLeft.X+chinRight.X) / 2

	yaw := (float64(noseTip.X) - chinCenterX) / faceWidth
	return Angle{
		Yaw:       yaw,
		IsFrontal: yaw > -frontalYaw && yaw < frontalYaw,
		IsRight:   yaw > turnedYaw,
		IsLeft:    yaw < -turnedYaw,
	}, true
}
