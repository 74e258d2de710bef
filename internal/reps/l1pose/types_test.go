package l1pose

import (
	"encoding/json"
	"testing"
)

func TestJointNamesRoundTrip(t *testing.T) {
	for _, j := range AllJoints() {
		got, err := ParseJointID(j.String())
		if err != nil {
			t.Fatalf("ParseJointID(%q) error: %v", j.String(), err)
		}
		if got != j {
			t.Errorf("ParseJointID(%q) = %v, want %v", j.String(), got, j)
		}
	}
}

func TestParseJointIDUnknown(t *testing.T) {
	if _, err := ParseJointID("left_tail"); err == nil {
		t.Fatal("expected error for unknown joint name")
	}
}

func TestJointRegion(t *testing.T) {
	testCases := []struct {
		joint JointID
		want  BodyRegion
	}{
		{Nose, RegionHead},
		{LeftEar, RegionHead},
		{RightShoulder, RegionTorso},
		{LeftHip, RegionTorso},
		{LeftWrist, RegionArm},
		{RightElbow, RegionArm},
		{LeftKnee, RegionLeg},
		{RightAnkle, RegionLeg},
		{JointID(99), ""},
	}
	for _, tc := range testCases {
		if got := tc.joint.Region(); got != tc.want {
			t.Errorf("%v.Region() = %q, want %q", tc.joint, got, tc.want)
		}
	}
}

func TestDefaultCandidatesExcludeHead(t *testing.T) {
	cands := DefaultCandidateJoints()
	if len(cands) != 10 {
		t.Fatalf("expected 10 candidate joints, got %d", len(cands))
	}
	for _, j := range cands {
		if j.Region() == RegionHead {
			t.Errorf("candidate %v is a head landmark", j)
		}
		if j == LeftShoulder || j == RightShoulder {
			t.Errorf("candidate %v is a shoulder", j)
		}
	}
}

func TestInvalidJointString(t *testing.T) {
	if got := JointID(-3).String(); got != "joint(-3)" {
		t.Errorf("String() = %q", got)
	}
	if _, err := JointID(NumJoints).MarshalText(); err == nil {
		t.Error("expected MarshalText error for out-of-range joint")
	}
}

func TestJointIDAsJSONKey(t *testing.T) {
	in := map[JointID]int{LeftWrist: 1, RightKnee: 2}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"left_wrist":1,"right_knee":2}` {
		t.Errorf("unexpected encoding %s", data)
	}
	var out map[JointID]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out[LeftWrist] != 1 || out[RightKnee] != 2 {
		t.Errorf("unexpected decode %v", out)
	}
}

func TestPointDist(t *testing.T) {
	if d := (Point{0, 0}).Dist(Point{3, 4}); d != 5 {
		t.Errorf("Dist = %v, want 5", d)
	}
	if p := (Point{3, 5}).Sub(Point{1, 1}); p != (Point{2, 4}) {
		t.Errorf("Sub = %v", p)
	}
}
