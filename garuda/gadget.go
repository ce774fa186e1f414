package garuda

import "fmt"

// Gadget describes a process registered with the broker. Absent wire
// fields are empty strings.
type Gadget struct {
	Name      string `json:"name"`
	ID        string `json:"ID"`
	IconPath  string `json:"iconPath"`
	Provider  string `json:"provider"`
	GatewayID string `json:"gateway_id"`
}

// Is reports whether g has the given identity.
func (g Gadget) Is(name, id string) bool {
	return g.Name == name && g.ID == id
}

// Same reports whether g and other are the same gadget.
func (g Gadget) Same(other Gadget) bool {
	return g.Is(other.Name, other.ID)
}

func (g Gadget) String() string {
	return fmt.Sprintf("Gadget(name=%q id=%q icon=%q provider=%q gateway=%q)",
		g.Name, g.ID, g.IconPath, g.Provider, g.GatewayID)
}
