package game

// ShipClass 艦種（名稱 + 長度）
type ShipClass struct {
	Name   string `yaml:"name" json:"name"`
	Length int    `yaml:"length" json:"length"`
}

// DefaultFleet 預設艦隊編制
func DefaultFleet() []ShipClass {
	return []ShipClass{
		{Name: "Porte-avions", Length: 5},
		{Name: "Croiseur", Length: 4},
		{Name: "Contre-torpilleur", Length: 3},
		{Name: "Sous-marin", Length: 3},
		{Name: "Torpilleur", Length: 2},
	}
}

// classOf 依名稱查找艦種
func classOf(fleet []ShipClass, name string) (ShipClass, bool) {
	for _, sc := range fleet {
		if sc.Name == name {
			return sc, true
		}
	}
	return ShipClass{}, false
}

// Ship 已放置的艦艇
type Ship struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Length      int         `json:"length"`
	Anchor      Coord       `json:"anchor"`
	Orientation Orientation `json:"orientation"`
	Cells       []Coord     `json:"cells"`
}
