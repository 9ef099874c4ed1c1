package api

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bvp/internal/usecase"
)

const eaScheme = "ea1.2018-06."

var (
	connectionEA = regexp.MustCompile(`^ea1\.2018-06\.([^:]+):(\d+):(\d+)$`)
	marketEA     = regexp.MustCompile(`^ea1\.2018-06\.([^:]+):([A-Za-z0-9_\-]+)$`)
	sensorEA     = regexp.MustCompile(`^ea1\.2018-06\.([^:]+):([a-z_]+):(-?\d+(?:\.\d+)?):(-?\d+(?:\.\d+)?)$`)
)

// EntityAddresses parses and builds the entity addresses of one host.
type EntityAddresses struct {
	Host string
}

func (e EntityAddresses) checkHost(ea, host string) error {
	if host != e.Host {
		return usecase.Reject(usecase.StatusInvalidDomain, "The entity address %s does not belong to domain %s.", ea, e.Host)
	}
	return nil
}

func invalidAddress(kind, ea string) error {
	return usecase.Reject(usecase.StatusInvalidDomain, "%s is not a valid %s address.", ea, kind)
}

// Connection parses ea1.2018-06.<host>:<owner_id>:<asset_id>.
func (e EntityAddresses) Connection(ea string) (usecase.ConnectionRef, error) {
	m := connectionEA.FindStringSubmatch(ea)
	if m == nil {
		return usecase.ConnectionRef{}, invalidAddress("connection", ea)
	}
	if err := e.checkHost(ea, m[1]); err != nil {
		return usecase.ConnectionRef{}, err
	}
	owner, err1 := strconv.ParseInt(m[2], 10, 64)
	asset, err2 := strconv.ParseInt(m[3], 10, 64)
	if err1 != nil || err2 != nil {
		return usecase.ConnectionRef{}, invalidAddress("connection", ea)
	}
	return usecase.ConnectionRef{OwnerID: owner, AssetID: asset}, nil
}

// Market parses ea1.2018-06.<host>:<market_name> and returns the name.
func (e EntityAddresses) Market(ea string) (string, error) {
	m := marketEA.FindStringSubmatch(ea)
	if m == nil {
		return "", invalidAddress("market", ea)
	}
	if err := e.checkHost(ea, m[1]); err != nil {
		return "", err
	}
	return m[2], nil
}

// Sensor parses ea1.2018-06.<host>:<sensor_type>:<latitude>:<longitude>.
func (e EntityAddresses) Sensor(ea string) (usecase.SensorRef, error) {
	m := sensorEA.FindStringSubmatch(ea)
	if m == nil {
		return usecase.SensorRef{}, invalidAddress("sensor", ea)
	}
	if err := e.checkHost(ea, m[1]); err != nil {
		return usecase.SensorRef{}, err
	}
	lat, err1 := strconv.ParseFloat(m[3], 64)
	lng, err2 := strconv.ParseFloat(m[4], 64)
	if err1 != nil || err2 != nil {
		return usecase.SensorRef{}, invalidAddress("sensor", ea)
	}
	return usecase.SensorRef{Type: m[2], Latitude: lat, Longitude: lng}, nil
}

// ConnectionAddress builds the address of an owner's asset.
func (e EntityAddresses) ConnectionAddress(ownerID, assetID int64) string {
	return fmt.Sprintf("%s%s:%d:%d", eaScheme, e.Host, ownerID, assetID)
}

// IsAddress reports whether s is written as an entity address rather than a name.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, eaScheme)
}
