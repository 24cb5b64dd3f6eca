package mapdoc

import (
	"strconv"

	"github.com/dpup/mapweather/server/internal/lib/geo"
)

// ChannelPrefix marks a double-click message on the renderer-to-host channel.
// The full message is "MAP_DBLCLICK:<lat>,<lon>".
const ChannelPrefix = "MAP_DBLCLICK:"

// ChannelPrecision is the number of fractional digits used for both fields.
const ChannelPrecision = 6

// EncodeClick renders a click the same way the embedded map script does.
// strconv is used instead of fmt so the output never depends on locale.
func EncodeClick(p geo.Point) string {
	buf := make([]byte, 0, len(ChannelPrefix)+24)
	buf = append(buf, ChannelPrefix...)
	buf = strconv.AppendFloat(buf, p.Latitude, 'f', ChannelPrecision, 64)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, p.Longitude, 'f', ChannelPrecision, 64)
	return string(buf)
}
