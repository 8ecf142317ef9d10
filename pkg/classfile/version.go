package classfile

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-version"
)

// Major versions with special meaning for verification.
const (
	// MajorJava6 is the last version whose verifier falls back to type
	// inference when stack map frames are missing or wrong.
	MajorJava6 = 50
	// MajorJava7 introduced invokedynamic and mandatory stack map frames.
	MajorJava7 = 51
)

// supportedVersions is the range of class-file versions this package reads
// and writes: JDK 1.1 (45.3) through Java 25 (69).
var supportedVersions = version.MustConstraints(version.NewConstraint(">= 45.3, < 70.0"))

// ErrUnsupportedVersion is returned for class files outside supportedVersions.
var ErrUnsupportedVersion = errors.New("unsupported class file version")

// FileVersion returns major.minor as a comparable version.
func FileVersion(major, minor uint16) *version.Version {
	return version.Must(version.NewVersion(fmt.Sprintf("%d.%d", major, minor)))
}

// CheckVersion reports whether major.minor is a supported class-file version.
func CheckVersion(major, minor uint16) error {
	if !supportedVersions.Check(FileVersion(major, minor)) {
		return fmt.Errorf("%w: %d.%d (supported %s)", ErrUnsupportedVersion, major, minor, supportedVersions)
	}
	return nil
}

// RequiresStackMaps reports whether the verifier for this class-file version
// insists on StackMapTable frames for methods with branches or handlers.
func RequiresStackMaps(major, minor uint16) bool {
	return FileVersion(major, minor).GreaterThanOrEqual(FileVersion(MajorJava7, 0))
}
