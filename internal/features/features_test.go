package features

import (
	"math"
	"testing"
)

const tolerance = 1e-6

func TestBuild(t *testing.T) {
	v := Build(50, 50, FixedSampler{ID: 5e11, Sched: 1})

	want := Vector{
		5e11,      // collection_id
		0.0,       // priority
		0.060429,  // resource_request_cpus
		-0.326162, // resource_request_memory
		0.0,       // collection_type
		2.0,       // vertical_scaling
		1,         // scheduler
		50,        // assigned_memory
		50,        // cpu_usage
		87.5,      // power_consumption
	}
	for i := range want {
		if math.Abs(v[i]-want[i]) > tolerance {
			t.Errorf("%s: expected %f, got %f", Names()[i], want[i], v[i])
		}
	}
}

func TestBuildUsesDistinctInputs(t *testing.T) {
	v := Build(20, 40, FixedSampler{})

	if math.Abs(v[ResourceRequestCPUs]-(-0.939571+0.4)) > tolerance {
		t.Errorf("unexpected resource_request_cpus %f", v[ResourceRequestCPUs])
	}
	if math.Abs(v[ResourceRequestMemory]-(-1.326162+0.8)) > tolerance {
		t.Errorf("unexpected resource_request_memory %f", v[ResourceRequestMemory])
	}
	if math.Abs(v[VerticalScaling]-1.8) > tolerance {
		t.Errorf("unexpected vertical_scaling %f", v[VerticalScaling])
	}
	if v[AssignedMemory] != 40 || v[CPUUsage] != 20 {
		t.Errorf("expected raw usages, got memory=%f cpu=%f", v[AssignedMemory], v[CPUUsage])
	}
	if math.Abs(v[PowerConsumption]-87.2) > tolerance {
		t.Errorf("unexpected power_consumption %f", v[PowerConsumption])
	}
}

func TestNormalizeUnitBoundsIsIdentity(t *testing.T) {
	for _, x := range []float64{-12.5, 0, 0.3, 1, 42, 99.99, 1e9} {
		if got := Normalize(x, 0, 1); got != x {
			t.Errorf("Normalize(%f, 0, 1) = %f, expected identity", x, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(50, 0, 100); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	if got := Normalize(5, 10, 10); got != 0 {
		t.Errorf("expected 0 for equal bounds, got %f", got)
	}
	if got := Normalize(5, 10, 0); got != 0 {
		t.Errorf("expected 0 for inverted bounds, got %f", got)
	}
}

func TestTensorShape(t *testing.T) {
	v := Build(10, 20, FixedSampler{ID: 4e11})
	tensor := v.Tensor()

	if len(tensor) != 1 {
		t.Fatalf("expected batch size 1, got %d", len(tensor))
	}
	if len(tensor[0]) != Size {
		t.Fatalf("expected %d timesteps, got %d", Size, len(tensor[0]))
	}
	for i, step := range tensor[0] {
		if len(step) != 1 {
			t.Fatalf("expected 1 channel at step %d, got %d", i, len(step))
		}
		if step[0] != v[i] {
			t.Errorf("step %d: expected %f, got %f", i, v[i], step[0])
		}
	}
}

func TestMap(t *testing.T) {
	m := Build(50, 50, FixedSampler{ID: 1, Sched: 0}).Map()
	if len(m) != Size {
		t.Fatalf("expected %d entries, got %d", Size, len(m))
	}
	if m["power_consumption"] != 87.5 {
		t.Errorf("expected power_consumption 87.5, got %f", m["power_consumption"])
	}
}

func TestRandomSampler(t *testing.T) {
	s := NewRandomSampler()
	seen := map[float64]bool{}
	ids := map[float64]bool{}

	for range 500 {
		id := s.CollectionID()
		if id < CollectionIDMin || id > CollectionIDMax {
			t.Fatalf("collection id %f out of range", id)
		}
		ids[id] = true

		sched := s.Scheduler()
		if sched != 0 && sched != 1 {
			t.Fatalf("scheduler %f not in {0, 1}", sched)
		}
		seen[sched] = true
	}

	if len(seen) != 2 {
		t.Errorf("expected both scheduler values over 500 draws, got %v", seen)
	}
	if len(ids) < 2 {
		t.Errorf("expected collection id to be resampled")
	}
}
