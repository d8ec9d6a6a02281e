package visionsvc

// extractionPrompt reads one handwritten admission form. The JSON keys
// must match intake.ExtractedFields.
const extractionPrompt = `This image is an admission form for an elementary school reading academy.
Extract the following information:

1. Student name
2. Grade: map to E1..E6 for elementary grades 1-6 (the form may write them as 초1..초6)
3. Parent phone number, normalized to 010-XXXX-XXXX
4. Preferred class times as "weekday HH:MM" with the weekday as one of mon/tue/wed/thu/fri/sat/sun
5. Reading habits and special notes
6. Important notes written in blue ink, if any; transcribe them separately

Respond with a single JSON object in this exact format:
{
  "name": "student name",
  "grade": "E1",
  "parent_phone": "010-1234-5678",
  "preferred_times": ["mon 14:00", "tue 15:00"],
  "reading_habit": "reading habit description",
  "special_notes": "special notes",
  "blue_notes": "blue ink notes"
}

Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`
