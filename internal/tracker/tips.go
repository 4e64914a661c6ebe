package tracker

import (
	"sort"
	"strings"
)

// FallbackTip is given to any device type without a dedicated tip
const FallbackTip = "✅ Use appliances wisely to save energy."

var energyTips = map[string]string{
	"light":           "💡 Switch to LED bulbs for better energy efficiency.",
	"fan":             "🌬️ Use energy-efficient ceiling fans.",
	"air_conditioner": "❄️ Set AC temperature to 24°C for energy savings.",
	"fridge":          "🧊 Keep refrigerator door closed tightly.",
	"tv":              "📺 Turn off TV completely when not in use.",
	"computer":        "🖥️ Enable power-saving mode on your computer.",
	"washer":          "🧺 Run washer with full loads.",
}

// Tip returns the energy-saving tip for a device type, case-insensitively
func Tip(deviceType string) string {
	if tip, ok := energyTips[strings.ToLower(deviceType)]; ok {
		return tip
	}
	return FallbackTip
}

// DeviceTip pairs a known device type with its tip
type DeviceTip struct {
	DeviceType string
	Tip        string
}

// Tips returns the known tips ordered by device type
func Tips() []DeviceTip {
	tips := make([]DeviceTip, 0, len(energyTips))
	for device, tip := range energyTips {
		tips = append(tips, DeviceTip{DeviceType: device, Tip: tip})
	}
	sort.Slice(tips, func(i, j int) bool {
		return tips[i].DeviceType < tips[j].DeviceType
	})
	return tips
}
