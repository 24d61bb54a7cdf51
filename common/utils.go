package common

import "github.com/go-gl/mathgl/mgl32"

type Vec3 = mgl32.Vec3

type IT interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}
type IIndex interface {
	~int | ~int8 | ~int16 | ~int32 | ~uint | ~uint8 | ~uint16 | ~uint32
}

// GetVec3 reads the index-th xyz triple of a packed vertex buffer.
func GetVec3[T1 IIndex](verts []float32, index T1) Vec3 {
	i := int(index) * 3
	return Vec3{verts[i], verts[i+1], verts[i+2]}
}

// SetVec3 writes v as the index-th xyz triple of a packed vertex buffer.
func SetVec3[T1 IIndex](verts []float32, index T1, v Vec3) {
	i := int(index) * 3
	verts[i] = v[0]
	verts[i+1] = v[1]
	verts[i+2] = v[2]
}
