// Package features turns a metrics snapshot into the positional feature
// vector the failure model was trained on.
//
// Three fields carry no live information: collection_id and scheduler are
// sampled per call and collection_type is constant. assigned_memory and
// cpu_usage are normalized against [0,1] although the inputs are percentages,
// which makes the normalization an identity. The model was trained on this
// exact layout.
package features

// Field positions within a Vector.
const (
	CollectionID = iota
	Priority
	ResourceRequestCPUs
	ResourceRequestMemory
	CollectionType
	VerticalScaling
	Scheduler
	AssignedMemory
	CPUUsage
	PowerConsumption

	Size
)

var names = [Size]string{
	"collection_id",
	"priority",
	"resource_request_cpus",
	"resource_request_memory",
	"collection_type",
	"vertical_scaling",
	"scheduler",
	"assigned_memory",
	"cpu_usage",
	"power_consumption",
}

const (
	cpuOffset    = -0.939571
	memoryOffset = -1.326162
	powerBase    = 87.0

	usageMin = 0.0
	usageMax = 1.0
)

// Vector is the fixed-order model input.
type Vector [Size]float64

// Names returns the field names in vector order.
func Names() []string {
	return names[:]
}

// Normalize rescales v from [lo, hi] to [0, 1]. Non-increasing bounds yield 0.
func Normalize(v, lo, hi float64) float64 {
	if hi > lo {
		return (v - lo) / (hi - lo)
	}
	return 0.0
}

// Build derives the feature vector from cpu and memory usage percentages.
func Build(cpu, memory float64, s Sampler) Vector {
	var v Vector
	v[CollectionID] = s.CollectionID()
	v[Priority] = 0.0
	v[ResourceRequestCPUs] = cpuOffset + cpu/50
	v[ResourceRequestMemory] = memoryOffset + memory/50
	v[CollectionType] = 0.0
	v[VerticalScaling] = 1.0 + memory/50
	v[Scheduler] = s.Scheduler()
	v[AssignedMemory] = Normalize(memory, usageMin, usageMax)
	v[CPUUsage] = Normalize(cpu, usageMin, usageMax)
	v[PowerConsumption] = powerBase + cpu/100
	return v
}

// Tensor reshapes the vector to (batch=1, timesteps=Size, channels=1).
func (v Vector) Tensor() [][][]float64 {
	steps := make([][]float64, Size)
	for i, x := range v {
		steps[i] = []float64{x}
	}
	return [][][]float64{steps}
}

// Map returns the vector keyed by field name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Size)
	for i, x := range v {
		m[names[i]] = x
	}
	return m
}
