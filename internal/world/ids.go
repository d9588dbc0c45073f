package world

import (
	"fmt"
	"strconv"
	"strings"
)

func ContainerID(typ string, pos Vec3) string {
	return fmt.Sprintf("%s@%d,%d,%d", typ, pos.X, pos.Y, pos.Z)
}

func ParseContainerID(id string) (typ string, pos Vec3, ok bool) {
	parts := strings.SplitN(id, "@", 2)
	if len(parts) != 2 {
		return "", Vec3{}, false
	}
	typ = parts[0]
	coord := strings.Split(parts[1], ",")
	if len(coord) != 3 {
		return "", Vec3{}, false
	}
	x, err1 := strconv.Atoi(coord[0])
	y, err2 := strconv.Atoi(coord[1])
	z, err3 := strconv.Atoi(coord[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", Vec3{}, false
	}
	return typ, Vec3{X: x, Y: y, Z: z}, true
}

// BlockResource names a block position for advisory region claims.
func BlockResource(dimension string, pos Vec3) string {
	return fmt.Sprintf("block:%s:%d,%d,%d", dimension, pos.X, pos.Y, pos.Z)
}
