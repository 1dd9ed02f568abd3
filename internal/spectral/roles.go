package spectral

import (
	"fmt"

	"github.com/forest-guardian/fractional-cover/internal/failure"
)

type Role int

const (
	RoleRed Role = iota
	RoleNIR
	RoleSWIR2
	RoleSWIR3
)

var roleNames = [...]string{"Red", "NIR", "SWIR2", "SWIR3"}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// Roles lists every spectral role needed to compute NDVI and SWIR32.
func Roles() []Role { return []Role{RoleRed, RoleNIR, RoleSWIR2, RoleSWIR3} }

// BandRoles assigns a 1-based band number of the input image to each role.
// Zero means unassigned.
type BandRoles struct {
	Red   int `yaml:"red" csv:"red_band"`
	NIR   int `yaml:"nir" csv:"nir_band"`
	SWIR2 int `yaml:"swir2" csv:"swir2_band"`
	SWIR3 int `yaml:"swir3" csv:"swir3_band"`
}

func (b BandRoles) Band(r Role) int {
	switch r {
	case RoleRed:
		return b.Red
	case RoleNIR:
		return b.NIR
	case RoleSWIR2:
		return b.SWIR2
	case RoleSWIR3:
		return b.SWIR3
	}
	return 0
}

// Validate checks every role is assigned. When bandCount is positive each
// band number must also lie in [1, bandCount].
func (b BandRoles) Validate(bandCount int) error {
	for _, r := range Roles() {
		n := b.Band(r)
		if n == 0 {
			return failure.NewConfigurationError(r.String()+" band", "role unassigned")
		}
		if n < 0 {
			return failure.NewConfigurationError(r.String()+" band", fmt.Sprintf("invalid band number %d", n))
		}
		if bandCount > 0 && n > bandCount {
			return failure.NewConfigurationError(r.String()+" band",
				fmt.Sprintf("invalid band number %d, image has %d bands", n, bandCount))
		}
	}
	return nil
}
