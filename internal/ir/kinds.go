package ir

import (
	"fmt"
	"strings"
)

// Kind is the declared logical kind of an ingested file.
type Kind string

const (
	KindInventory         Kind = "inventory"
	KindAnnualP7          Kind = "annual_p7"
	KindBuildingRegister  Kind = "building_register"
	KindEquipmentRegister Kind = "equipment_register"
)

// Kinds lists every declared kind in a stable order.
var Kinds = []Kind{KindInventory, KindAnnualP7, KindBuildingRegister, KindEquipmentRegister}

// ParseKind validates a declared kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q (want one of inventory, annual_p7, building_register, equipment_register)", s)
}

// ProducesReport reports whether files of this kind materialize into a
// per-(local, year) Report.
func (k Kind) ProducesReport() bool {
	return k == KindAnnualP7 || k == KindBuildingRegister || k == KindEquipmentRegister
}

// SheetClass is the recognizer's classification of a sheet.
type SheetClass string

const (
	SheetInventoryP7H      SheetClass = "inventory_p7h"
	SheetP7Page1           SheetClass = "p7_page1"
	SheetP7Page2           SheetClass = "p7_page2"
	SheetP7Page3           SheetClass = "p7_page3"
	SheetP7Page4           SheetClass = "p7_page4"
	SheetP7Page5           SheetClass = "p7_page5"
	SheetGusaliRegister    SheetClass = "gusali_register"
	SheetKagamitanRegister SheetClass = "kagamitan_register"
	SheetUnknown           SheetClass = "unknown"
)

// Section tags the source section a record came from.
type Section string

const (
	SectionHeader         Section = "Header"
	SectionChapel         Section = "Chapel"
	SectionPastoralHouse  Section = "Pastoral House"
	SectionOfficeBuilding Section = "Office Building"
	SectionOtherBuilding  Section = "Other Building"
	SectionItem           Section = "Item"
	SectionAddedItem      Section = "Added Item"
	SectionRemovedItem    Section = "Removed Item"
	SectionLand           Section = "Land"
	SectionPlant          Section = "Plant"
	SectionVehicle        Section = "Vehicle"
	SectionHousingUnit    Section = "Housing Unit"
	SectionInventoryItem  Section = "Inventory Item"
)

// BuildingSections lists the building-class sections in page order.
var BuildingSections = []Section{SectionChapel, SectionPastoralHouse, SectionOfficeBuilding, SectionOtherBuilding}

// ItemSections lists the item-class sections in page order.
var ItemSections = []Section{SectionItem, SectionAddedItem, SectionRemovedItem}

// AssetSections lists the page-5 sections.
var AssetSections = []Section{SectionLand, SectionPlant, SectionVehicle}

// BuildingClass maps a building section to its class. The second result is
// false for non-building sections.
func (s Section) BuildingClass() (BuildingClass, bool) {
	switch s {
	case SectionChapel:
		return ClassChapel, true
	case SectionPastoralHouse:
		return ClassPastoralHouse, true
	case SectionOfficeBuilding:
		return ClassOffice, true
	case SectionOtherBuilding:
		return ClassOther, true
	}
	return "", false
}

// ItemKind maps an item section to its kind.
func (s Section) ItemKind() (ItemKind, bool) {
	switch s {
	case SectionItem:
		return ItemExisting, true
	case SectionAddedItem:
		return ItemAdded, true
	case SectionRemovedItem:
		return ItemRemoved, true
	}
	return "", false
}

// BuildingClass discriminates the four building-class entities.
type BuildingClass string

const (
	ClassChapel        BuildingClass = "chapel"
	ClassPastoralHouse BuildingClass = "pastoral_house"
	ClassOffice        BuildingClass = "office"
	ClassOther         BuildingClass = "other"
)

// Section returns the section a building class is extracted from.
func (c BuildingClass) Section() Section {
	switch c {
	case ClassChapel:
		return SectionChapel
	case ClassPastoralHouse:
		return SectionPastoralHouse
	case ClassOffice:
		return SectionOfficeBuilding
	default:
		return SectionOtherBuilding
	}
}

// ItemKind discriminates existing, added and removed items.
type ItemKind string

const (
	ItemExisting ItemKind = "existing"
	ItemAdded    ItemKind = "added"
	ItemRemoved  ItemKind = "removed"
)

// Section returns the section an item kind is extracted from.
func (k ItemKind) Section() Section {
	switch k {
	case ItemAdded:
		return SectionAddedItem
	case ItemRemoved:
		return SectionRemovedItem
	default:
		return SectionItem
	}
}

// Status is the lifecycle state of a provenance entry or sync run.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusPartial    Status = "partial"
	StatusError      Status = "error"
)
