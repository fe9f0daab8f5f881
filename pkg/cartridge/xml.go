package cartridge

import (
	"encoding/xml"

	"cartwright/pkg/errors"
)

// Namespace declarations for the Common Cartridge 1.1.0 manifest. The
// schemaLocation pairs each namespace with its published XSD.
const (
	xmlnsIMSCP    = "http://www.imsglobal.org/xsd/imsccv1p1/imscp_v1p1"
	xmlnsLOM      = "http://ltsc.ieee.org/xsd/imsccv1p1/LOM/resource"
	xmlnsLOMIMSCC = "http://ltsc.ieee.org/xsd/imsccv1p1/LOM/manifest"
	xmlnsXSI      = "http://www.w3.org/2001/XMLSchema-instance"

	schemaLocation = "http://www.imsglobal.org/xsd/imsccv1p1/imscp_v1p1 " +
		"http://www.imsglobal.org/xsd/imscp_v1p1.xsd " +
		"http://ltsc.ieee.org/xsd/imsccv1p1/LOM/resource " +
		"http://www.imsglobal.org/profile/cc/ccv1p1/LOM/ccv1p1_lomresource_v1p0.xsd " +
		"http://ltsc.ieee.org/xsd/imsccv1p1/LOM/manifest " +
		"http://www.imsglobal.org/profile/cc/ccv1p1/LOM/ccv1p1_lommanifest_v1p0.xsd"

	// organizationStructure is the only structure the cartridge profile
	// defines for organizations.
	organizationStructure = "rooted-hierarchy"
)

// Serialization DTOs. Field order fixes attribute and element order, which
// keeps output byte-stable across runs. Prefixed names are emitted
// verbatim; the namespaces they refer to are declared on the root element.
type (
	xmlManifest struct {
		XMLName        xml.Name         `xml:"manifest"`
		Identifier     string           `xml:"identifier,attr"`
		Xmlns          string           `xml:"xmlns,attr"`
		XmlnsLom       string           `xml:"xmlns:lom,attr"`
		XmlnsLomimscc  string           `xml:"xmlns:lomimscc,attr"`
		XmlnsXsi       string           `xml:"xmlns:xsi,attr"`
		SchemaLocation string           `xml:"xsi:schemaLocation,attr"`
		Metadata       xmlMetadata      `xml:"metadata"`
		Organizations  xmlOrganizations `xml:"organizations"`
		Resources      xmlResources     `xml:"resources"`
	}

	xmlMetadata struct {
		Schema        string `xml:"schema"`
		SchemaVersion string `xml:"schemaversion"`
		Lom           xmlLom `xml:"lomimscc:lom"`
	}

	xmlLom struct {
		General xmlGeneral `xml:"lomimscc:general"`
	}

	xmlGeneral struct {
		Title xmlTitle `xml:"lomimscc:title"`
	}

	xmlTitle struct {
		String string `xml:"lomimscc:string"`
	}

	xmlOrganizations struct {
		Organization xmlOrganization `xml:"organization"`
	}

	xmlOrganization struct {
		Identifier string  `xml:"identifier,attr"`
		Structure  string  `xml:"structure,attr"`
		Root       xmlItem `xml:"item"`
	}

	xmlItem struct {
		Identifier    string    `xml:"identifier,attr"`
		IdentifierRef string    `xml:"identifierref,attr,omitempty"`
		Title         string    `xml:"title,omitempty"`
		Items         []xmlItem `xml:"item,omitempty"`
	}

	xmlResources struct {
		Resources []xmlResource `xml:"resource"`
	}

	xmlResource struct {
		Identifier   string          `xml:"identifier,attr"`
		Type         string          `xml:"type,attr"`
		Href         string          `xml:"href,attr"`
		Files        []xmlFile       `xml:"file"`
		Dependencies []xmlDependency `xml:"dependency,omitempty"`
	}

	xmlFile struct {
		Href string `xml:"href,attr"`
	}

	xmlDependency struct {
		IdentifierRef string `xml:"identifierref,attr"`
	}
)

// Serialize renders the manifest tree as an imsmanifest.xml document.
// Output is deterministic: element and attribute order follow the DTO
// field order, item order follows the tree. Titles and hrefs pass through
// XML escaping here regardless of any escaping the payloads received.
func Serialize(m *Manifest) ([]byte, error) {
	doc := xmlManifest{
		Identifier:     m.Identifier,
		Xmlns:          xmlnsIMSCP,
		XmlnsLom:       xmlnsLOM,
		XmlnsLomimscc:  xmlnsLOMIMSCC,
		XmlnsXsi:       xmlnsXSI,
		SchemaLocation: schemaLocation,
		Metadata: xmlMetadata{
			Schema:        m.Schema,
			SchemaVersion: m.SchemaVersion,
			Lom: xmlLom{
				General: xmlGeneral{Title: xmlTitle{String: m.Title}},
			},
		},
		Organizations: xmlOrganizations{
			Organization: xmlOrganization{
				Identifier: m.Organization.Identifier,
				Structure:  organizationStructure,
				Root: xmlItem{
					Identifier: rootItemID,
					Items:      xmlItems(m.Organization.Nodes),
				},
			},
		},
		Resources: xmlResources{Resources: xmlResourceList(m.Resources)},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStructural, err, "failed to serialize manifest")
	}

	buf := make([]byte, 0, len(xml.Header)+len(out)+1)
	buf = append(buf, xml.Header...)
	buf = append(buf, out...)
	buf = append(buf, '\n')
	return buf, nil
}

func xmlItems(nodes []*Node) []xmlItem {
	if len(nodes) == 0 {
		return nil
	}
	items := make([]xmlItem, len(nodes))
	for i, n := range nodes {
		items[i] = xmlItem{
			Identifier:    n.Identifier,
			IdentifierRef: n.ResourceRef,
			Title:         n.Title,
			Items:         xmlItems(n.Children),
		}
	}
	return items
}

func xmlResourceList(resources []*Resource) []xmlResource {
	out := make([]xmlResource, len(resources))
	for i, r := range resources {
		xr := xmlResource{
			Identifier: r.Identifier,
			Type:       r.Type,
			Href:       r.Href,
		}
		for _, f := range r.Files {
			xr.Files = append(xr.Files, xmlFile{Href: f})
		}
		for _, dep := range r.Dependencies {
			xr.Dependencies = append(xr.Dependencies, xmlDependency{IdentifierRef: dep})
		}
		out[i] = xr
	}
	return out
}
