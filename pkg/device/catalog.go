package device

import "github.com/tuya-local/tuyable-go/pkg/datapoint"

// FingerbotInfo maps the datapoint IDs of a fingerbot-family product.
type FingerbotInfo struct {
	// Switch triggers a press.
	Switch uint8

	// Mode selects push / switch / program operation.
	Mode uint8

	// UpPosition and DownPosition are the arm travel limits in percent.
	UpPosition   uint8
	DownPosition uint8

	// HoldTime is how long the arm holds the down position, in seconds.
	HoldTime uint8

	// ReversePositions swaps the meaning of up and down.
	ReversePositions uint8

	// ManualControl enables the physical button, 0 if the product has none.
	ManualControl uint8

	// Program holds the step program, 0 if the product has none.
	Program uint8
}

// CoverInfo maps the datapoint IDs of a cover-family product.
type CoverInfo struct {
	// Position is the target position in percent.
	Position uint8

	// CurrentPosition reports the actual position, 0 if the product only
	// has the target datapoint.
	CurrentPosition uint8

	// Inverted is set for products that report 0 as fully open.
	Inverted bool
}

// ProductInfo describes one product of the catalog.
type ProductInfo struct {
	// Name is the marketed product name.
	Name string

	// Category is the vendor category code.
	Category string

	// Battery is the battery percentage datapoint, 0 if the product has
	// none.
	Battery uint8

	// Fingerbot is set for fingerbot-family products.
	Fingerbot *FingerbotInfo

	// Cover is set for cover-family products.
	Cover *CoverInfo
}

// fingerbotPlus is shared by the Fingerbot Plus product IDs.
var fingerbotPlus = &ProductInfo{
	Name:     "Fingerbot Plus",
	Category: "szjqr",
	Battery:  12,
	Fingerbot: &FingerbotInfo{
		Switch:           2,
		Mode:             8,
		UpPosition:       15,
		DownPosition:     9,
		HoldTime:         10,
		ReversePositions: 11,
		ManualControl:    17,
		Program:          121,
	},
}

// fingerbot is shared by the original Fingerbot product IDs.
var fingerbot = &ProductInfo{
	Name:     "Fingerbot",
	Category: "szjqr",
	Battery:  12,
	Fingerbot: &FingerbotInfo{
		Switch:           2,
		Mode:             8,
		UpPosition:       15,
		DownPosition:     9,
		HoldTime:         10,
		ReversePositions: 11,
		Program:          121,
	},
}

// cubetouch is shared by the CubeTouch product IDs, which use the older
// datapoint layout.
var cubetouch = &ProductInfo{
	Name:     "CUBETOUCH",
	Category: "szjqr",
	Battery:  12,
	Fingerbot: &FingerbotInfo{
		Switch:           1,
		Mode:             2,
		UpPosition:       5,
		DownPosition:     6,
		HoldTime:         3,
		ReversePositions: 4,
	},
}

// catalog maps product IDs to product descriptions. Entries follow the
// device population seen in the field; unknown products still work through
// the raw datapoint surface, they just get no convenience helpers.
var catalog = map[string]*ProductInfo{
	// szjqr (fingerbots)
	"3yqdo5yt": cubetouch,
	"xhf790if": cubetouch,
	"blliqpsj": fingerbotPlus,
	"ndvkgsrm": fingerbotPlus,
	"yiihr7zh": fingerbotPlus,
	"neq16kgd": fingerbotPlus,
	"ltak7e1p": fingerbot,
	"y6kttvd6": fingerbot,
	"yrnk7mnn": fingerbot,
	"nvr2rocq": fingerbot,
	"bnt7wajf": fingerbot,
	"rvdceqjh": fingerbot,
	"5xhbk964": fingerbot,

	// co2bj
	"59s19z5m": {Name: "CO2 Detector", Category: "co2bj", Battery: 15},

	// ms (locks)
	"ludzroix": {Name: "Smart Lock", Category: "ms"},
	"isk2p555": {Name: "Smart Lock", Category: "ms"},

	// wk (TRVs)
	"drlajpqc": {Name: "Thermostatic Radiator Valve", Category: "wk"},
	"nhj2j7su": {Name: "Thermostatic Radiator Valve", Category: "wk"},

	// wsdcg
	"ojzlzzsw": {Name: "Soil moisture sensor", Category: "wsdcg", Battery: 14},

	// znhsb
	"cdlandip": {Name: "Smart water bottle", Category: "znhsb"},

	// ggq (irrigation)
	"6pahkcau": {Name: "Irrigation computer", Category: "ggq", Battery: 11},
	"hfgdqhho": {Name: "Irrigation computer", Category: "ggq", Battery: 11},
}

// LookupProduct returns the catalog entry for a product ID.
func LookupProduct(productID string) (*ProductInfo, bool) {
	info, ok := catalog[productID]
	return info, ok
}

// FingerbotSchema returns the datapoint schema matching a fingerbot-family
// catalog entry. Products outside the catalog supply their own schema,
// usually loaded from a YAML file.
func FingerbotSchema(productID string) (*datapoint.Schema, bool) {
	info, ok := catalog[productID]
	if !ok || info.Fingerbot == nil {
		return nil, false
	}
	fb := info.Fingerbot

	defs := []datapoint.Def{
		{ID: fb.Switch, Name: "switch", Kind: datapoint.KindBool},
		{ID: fb.Mode, Name: "mode", Kind: datapoint.KindEnum, Values: []string{"push", "switch", "program"}},
		{ID: fb.UpPosition, Name: "up_position", Kind: datapoint.KindValue},
		{ID: fb.DownPosition, Name: "down_position", Kind: datapoint.KindValue},
		{ID: fb.HoldTime, Name: "hold_time", Kind: datapoint.KindValue},
		{ID: fb.ReversePositions, Name: "reverse_positions", Kind: datapoint.KindBool},
	}
	if fb.ManualControl != 0 {
		defs = append(defs, datapoint.Def{ID: fb.ManualControl, Name: "manual_control", Kind: datapoint.KindBool})
	}
	if fb.Program != 0 {
		defs = append(defs, datapoint.Def{ID: fb.Program, Name: "program", Kind: datapoint.KindProgram})
	}
	if info.Battery != 0 {
		defs = append(defs, datapoint.Def{ID: info.Battery, Name: "battery_percentage", Kind: datapoint.KindValue})
	}
	return datapoint.NewSchema(productID, info.Category, defs), true
}
