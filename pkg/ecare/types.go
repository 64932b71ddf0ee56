/*
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ecare

// Address is a postal address, all fields may be empty.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zipcode string `json:"zipcode"`
}

// LicenceInformation is a state medical licence.
type LicenceInformation struct {
	UUID          string `json:"uuid"`
	LicenseState  string `json:"licenseState"`
	LicenseNumber string `json:"licenseNumber"`
}

// DEAInformation is a drug enforcement registration.
type DEAInformation struct {
	DEAState      string `json:"deaState"`
	DEANumber     string `json:"deaNumber"`
	DEATermDate   string `json:"deaTermDate"`
	DEAActiveDate string `json:"deaActiveDate"`
}

// Provider is the body of a provider create.  Nil slices are sent as JSON
// null which the API expects for unset collections.
type Provider struct {
	RoleType              string               `json:"roleType"`
	Active                *bool                `json:"active,omitempty"`
	AdminAccess           *bool                `json:"admin_access,omitempty"`
	Status                *bool                `json:"status,omitempty"`
	Avatar                string               `json:"avatar"`
	Role                  string               `json:"role"`
	FirstName             string               `json:"firstName"`
	LastName              string               `json:"lastName"`
	Gender                string               `json:"gender"`
	Phone                 string               `json:"phone"`
	NPI                   string               `json:"npi"`
	Specialities          []string             `json:"specialities"`
	GroupNPINumber        string               `json:"groupNpiNumber"`
	LicensedStates        []string             `json:"licensedStates"`
	LicenseNumber         string               `json:"licenseNumber"`
	AcceptedInsurances    []string             `json:"acceptedInsurances"`
	Experience            string               `json:"experience"`
	TaxonomyNumber        string               `json:"taxonomyNumber"`
	WorkLocations         []string             `json:"workLocations"`
	Email                 string               `json:"email"`
	OfficeFaxNumber       string               `json:"officeFaxNumber"`
	AreaFocus             string               `json:"areaFocus"`
	HospitalAffiliation   string               `json:"hospitalAffiliation"`
	AgeGroupSeen          []string             `json:"ageGroupSeen"`
	SpokenLanguages       []string             `json:"spokenLanguages"`
	ProviderEmployment    string               `json:"providerEmployment"`
	InsuranceVerification string               `json:"insurance_verification"`
	PriorAuthorization    string               `json:"prior_authorization"`
	SecondOpinion         string               `json:"secondOpinion"`
	CareService           []string             `json:"careService"`
	Bio                   string               `json:"bio"`
	Expertise             string               `json:"expertise"`
	WorkExperience        string               `json:"workExperience"`
	LicenceInformation    []LicenceInformation `json:"licenceInformation"`
	DEAInformation        []DEAInformation     `json:"deaInformation"`
}

// EmergencyContact is who to call.
type EmergencyContact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Mobile    string `json:"mobile"`
}

// PatientInsurance is a patient's insurance policy.
type PatientInsurance struct {
	Active                 bool           `json:"active"`
	InsuranceID            string         `json:"insuranceId"`
	CopayType              string         `json:"copayType"`
	CoInsurance            string         `json:"coInsurance"`
	ClaimNumber            string         `json:"claimNumber"`
	Note                   string         `json:"note"`
	DeductibleAmount       string         `json:"deductibleAmount"`
	EmployerName           string         `json:"employerName"`
	EmployerAddress        Address        `json:"employerAddress"`
	SubscriberFirstName    string         `json:"subscriberFirstName"`
	SubscriberLastName     string         `json:"subscriberLastName"`
	SubscriberMiddleName   string         `json:"subscriberMiddleName"`
	SubscriberSSN          string         `json:"subscriberSsn"`
	SubscriberMobileNumber string         `json:"subscriberMobileNumber"`
	SubscriberAddress      Address        `json:"subscriberAddress"`
	GroupID                string         `json:"groupId"`
	MemberID               string         `json:"memberId"`
	GroupName              string         `json:"groupName"`
	FrontPhoto             string         `json:"frontPhoto"`
	BackPhoto              string         `json:"backPhoto"`
	InsuredFirstName       string         `json:"insuredFirstName"`
	InsuredLastName        string         `json:"insuredLastName"`
	Address                Address        `json:"address"`
	InsuredBirthDate       string         `json:"insuredBirthDate"`
	CoPay                  string         `json:"coPay"`
	InsurancePayer         map[string]any `json:"insurancePayer"`
}

// PatientConsent records when consent was given.
type PatientConsent struct {
	SignedDate string `json:"signedDate"`
}

// Patient is the body of a patient create.
type Patient struct {
	PhoneNotAvailable      bool               `json:"phoneNotAvailable"`
	EmailNotAvailable      bool               `json:"emailNotAvailable"`
	RegistrationDate       string             `json:"registrationDate"`
	FirstName              string             `json:"firstName"`
	MiddleName             string             `json:"middleName"`
	LastName               string             `json:"lastName"`
	Timezone               string             `json:"timezone"`
	BirthDate              string             `json:"birthDate"`
	Gender                 string             `json:"gender"`
	SSN                    string             `json:"ssn"`
	MRN                    string             `json:"mrn"`
	Languages              []string           `json:"languages"`
	Avatar                 string             `json:"avatar"`
	MobileNumber           string             `json:"mobileNumber"`
	FaxNumber              string             `json:"faxNumber"`
	HomePhone              string             `json:"homePhone"`
	Address                Address            `json:"address"`
	EmergencyContacts      []EmergencyContact `json:"emergencyContacts"`
	PatientInsurances      []PatientInsurance `json:"patientInsurances"`
	EmailConsent           *bool              `json:"emailConsent,omitempty"`
	MessageConsent         *bool              `json:"messageConsent,omitempty"`
	CallConsent            *bool              `json:"callConsent,omitempty"`
	PatientConsentEntities []PatientConsent   `json:"patientConsentEntities"`
}

// AvailabilitySetting configures appointment types.
type AvailabilitySetting struct {
	Type          string `json:"type"`
	SlotTime      string `json:"slotTime"`
	MinNoticeUnit string `json:"minNoticeUnit"`
}

// DaySlot is a window of availability on a day of the week.
type DaySlot struct {
	Day              string `json:"day"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	AvailabilityMode string `json:"availabilityMode"`
}

// Availability is the body of an availability update.
type Availability struct {
	SetToWeekdays       bool                  `json:"setToWeekdays"`
	ProviderID          string                `json:"providerId"`
	BookingWindow       string                `json:"bookingWindow"`
	Timezone            string                `json:"timezone"`
	BufferTime          int                   `json:"bufferTime"`
	InitialConsultTime  int                   `json:"initialConsultTime"`
	FollowupConsultTime int                   `json:"followupConsultTime"`
	Settings            []AvailabilitySetting `json:"settings"`
	BlockDays           []string              `json:"blockDays"`
	DaySlots            []DaySlot             `json:"daySlots"`
	BookBefore          string                `json:"bookBefore"`
	TenantID            string                `json:"xTENANTID"`
}

// Appointment is the body of an appointment booking.
type Appointment struct {
	Mode                 string   `json:"mode"`
	PatientID            string   `json:"patientId"`
	CustomForms          []string `json:"customForms"`
	VisitType            string   `json:"visit_type"`
	Type                 string   `json:"type"`
	PaymentType          string   `json:"paymentType"`
	ProviderID           string   `json:"providerId"`
	StartTime            string   `json:"startTime"`
	EndTime              string   `json:"endTime"`
	InsuranceType        string   `json:"insurance_type"`
	Note                 string   `json:"note"`
	Authorization        string   `json:"authorization"`
	Forms                []string `json:"forms"`
	ChiefComplaint       string   `json:"chiefComplaint"`
	IsRecurring          bool     `json:"isRecurring"`
	RecurringFrequency   string   `json:"recurringFrequency"`
	ReminderSet          bool     `json:"reminder_set"`
	EndType              string   `json:"endType"`
	EndDate              string   `json:"endDate"`
	EndAfter             *int     `json:"endAfter,omitempty"`
	CustomFrequency      *int     `json:"customFrequency,omitempty"`
	CustomFrequencyUnit  string   `json:"customFrequencyUnit"`
	SelectedWeekdays     []string `json:"selectedWeekdays"`
	ReminderBeforeNumber *int     `json:"reminder_before_number,omitempty"`
	Timezone             string   `json:"timezone"`
	Duration             int      `json:"duration"`
	TenantID             string   `json:"xTENANTID"`
}

// ProviderRecord is a provider as listed by the API.
type ProviderRecord struct {
	UUID      string `json:"uuid"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PatientRecord is a patient as listed by the API.
type PatientRecord struct {
	UUID      string `json:"uuid"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

// Envelope is the acknowledgement wrapper returned by create operations.
type Envelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// page is a paginated list.
type page[T any] struct {
	Data struct {
		Content []T `json:"content"`
	} `json:"data"`
}
